package identity

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// snapshotVersion is bumped whenever the wire shape of the snapshot changes.
const snapshotVersion = 1

// Compression metrics
var (
	compressionRatio    int64
	compressionCount    int64
	uncompressedCount   int64
	totalOriginalSize   int64
	totalCompressedSize int64
)

// SnapshotStats returns current snapshot compression statistics
func SnapshotStats() map[string]interface{} {
	compressed := atomic.LoadInt64(&compressionCount)
	uncompressed := atomic.LoadInt64(&uncompressedCount)
	total := compressed + uncompressed

	var avgRatio float64
	if compressed > 0 {
		avgRatio = float64(atomic.LoadInt64(&compressionRatio)) / float64(compressed)
	}

	return map[string]interface{}{
		"compression_count":     compressed,
		"uncompressed_count":    uncompressed,
		"total_snapshots":       total,
		"compression_ratio":     avgRatio,
		"total_original_size":   atomic.LoadInt64(&totalOriginalSize),
		"total_compressed_size": atomic.LoadInt64(&totalCompressedSize),
		"space_saved_bytes":     atomic.LoadInt64(&totalOriginalSize) - atomic.LoadInt64(&totalCompressedSize),
	}
}

// Compression threshold in bytes. Only compress if the snapshot is larger
// than this; small stores gain nothing from gzip.
const compressionThreshold = 32 * 1024

// CompressionConfig holds configuration for snapshot compression
type CompressionConfig struct {
	Enabled          bool // Enable/disable compression
	Threshold        int  // Threshold in bytes. Only compress if the snapshot is larger than this.
	CompressionLevel int  // Gzip compression level (1-9)
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() *CompressionConfig {
	return &CompressionConfig{
		Enabled:          true,
		Threshold:        compressionThreshold,
		CompressionLevel: gzip.BestCompression,
	}
}

// Global compression configuration
var globalCompressionConfig = DefaultCompressionConfig()

// SetCompressionConfig sets the global compression configuration
func SetCompressionConfig(config *CompressionConfig) {
	globalCompressionConfig = config
}

// GetCompressionConfig returns the current compression configuration
func GetCompressionConfig() *CompressionConfig {
	return globalCompressionConfig
}

// toEncSnapshot flattens the store into the wire shape. Identities and their
// chain replicas are sorted so the same state always snapshots to the same
// bytes.
func (s *Store) toEncSnapshot() *encSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &encSnapshot{
		Version:    snapshotVersion,
		Identities: make([]encIdentityState, 0, len(s.identities)),
	}
	for _, entry := range s.identities {
		entry.mu.RLock()
		state := entry.state

		enc := encIdentityState{
			IdentityID: state.IdentityID,
			Owner:      state.Owner,
			Chains:     make([]encChainState, 0, len(state.ChainStates)),
		}
		for _, replica := range state.ChainStates {
			var lastSync uint64
			if !replica.LastSync.IsZero() {
				lastSync = uint64(replica.LastSync.Unix())
			}

			enc.Chains = append(enc.Chains, encChainState{
				ChainID:      replica.ChainID,
				SmartAccount: replica.SmartAccount,
				Nonce:        replica.Nonce,
				Deployed:     replica.Deployed,
				LastSync:     lastSync,
			})
		}
		entry.mu.RUnlock()

		sort.Slice(enc.Chains, func(i, j int) bool {
			return enc.Chains[i].ChainID < enc.Chains[j].ChainID
		})
		snap.Identities = append(snap.Identities, enc)
	}

	sort.Slice(snap.Identities, func(i, j int) bool {
		return bytes.Compare(snap.Identities[i].IdentityID[:], snap.Identities[j].IdentityID[:]) < 0
	})

	return snap
}

// fromEncSnapshot rebuilds the identity map from the wire shape, replacing
// whatever the store held before.
func (s *Store) fromEncSnapshot(snap *encSnapshot) error {
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	identities := make(map[common.Hash]*identityEntry, len(snap.Identities))
	for _, enc := range snap.Identities {
		state := &CrossChainIdentityState{
			IdentityID:  enc.IdentityID,
			Owner:       enc.Owner,
			ChainStates: make(map[uint64]ChainIdentityState, len(enc.Chains)),
		}
		for _, replica := range enc.Chains {
			var lastSync time.Time
			if replica.LastSync != 0 {
				lastSync = time.Unix(int64(replica.LastSync), 0).UTC()
			}

			state.ChainStates[replica.ChainID] = ChainIdentityState{
				ChainID:      replica.ChainID,
				SmartAccount: replica.SmartAccount,
				Nonce:        replica.Nonce,
				Deployed:     replica.Deployed,
				LastSync:     lastSync,
			}
		}
		identities[enc.IdentityID] = &identityEntry{state: state}
	}

	s.mu.Lock()
	s.identities = identities
	count := len(s.identities)
	s.mu.Unlock()

	identityCountGauge.Update(int64(count))

	return nil
}

// EncodeSnapshot serializes the store with optional compression.
func (s *Store) EncodeSnapshot(wr io.Writer) error {
	// First encode to RLP
	var rlpBuf bytes.Buffer
	if err := rlp.Encode(&rlpBuf, s.toEncSnapshot()); err != nil {
		return err
	}

	rlpData := rlpBuf.Bytes()
	originalSize := len(rlpData)

	// Track original size
	atomic.AddInt64(&totalOriginalSize, int64(originalSize))

	// Only compress if enabled and the data is large enough to benefit from compression
	if globalCompressionConfig.Enabled && len(rlpData) > globalCompressionConfig.Threshold {
		// Compress the RLP data
		var compressedBuf bytes.Buffer
		gw, err := gzip.NewWriterLevel(&compressedBuf, globalCompressionConfig.CompressionLevel)
		if err != nil {
			return err
		}

		if _, err := gw.Write(rlpData); err != nil {
			return err
		}

		if err := gw.Close(); err != nil {
			return err
		}

		compressedData := compressedBuf.Bytes()

		// Only use compression if it actually reduces size
		if len(compressedData) < len(rlpData) {
			// Track compression metrics
			atomic.AddInt64(&compressionCount, 1)
			atomic.AddInt64(&totalCompressedSize, int64(len(compressedData)))
			ratio := int64(float64(len(compressedData)) / float64(originalSize) * 100)
			atomic.AddInt64(&compressionRatio, ratio)

			// Write compression marker and compressed data
			if _, err := wr.Write([]byte{0x01}); err != nil {
				return err
			}
			_, err = wr.Write(compressedData)
			return err
		}
	}

	// Track uncompressed metrics
	atomic.AddInt64(&uncompressedCount, 1)
	atomic.AddInt64(&totalCompressedSize, int64(originalSize))

	// Write uncompressed marker and original RLP data
	if _, err := wr.Write([]byte{0x00}); err != nil {
		return err
	}
	_, err := wr.Write(rlpData)
	return err
}

// DecodeSnapshot restores the store from a snapshot, replacing all current
// contents.
func (s *Store) DecodeSnapshot(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty data")
	}

	// Check compression marker
	compressed := data[0] == 0x01
	snapData := data[1:]

	var rlpData []byte
	if compressed {
		// Decompress
		gr, err := gzip.NewReader(bytes.NewReader(snapData))
		if err != nil {
			return err
		}
		defer gr.Close()

		var decompressedBuf bytes.Buffer
		if _, err := io.Copy(&decompressedBuf, gr); err != nil {
			return err
		}
		rlpData = decompressedBuf.Bytes()
	} else {
		rlpData = snapData
	}

	// Decode the RLP data
	var snap encSnapshot
	if err := rlp.DecodeBytes(rlpData, &snap); err != nil {
		return err
	}

	return s.fromEncSnapshot(&snap)
}
