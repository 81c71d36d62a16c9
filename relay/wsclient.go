package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"

	"github.com/jeju-network/crosschain/gateway"
)

type relayEvent string

const (
	statusEventType  relayEvent = "intent_status"
	statusEventQuery string     = "relay.event='IntentStatus'"
)

// reconnectInterval is the pause between reconnection attempts.
const reconnectInterval = 10 * time.Second

type eventSubscription struct {
	conn *websocket.Conn
	done chan struct{}
}

// WSClient represents a websocket client with auto-reconnection for the
// relay's pushed intent status feed.
type WSClient struct {
	subscriptions map[relayEvent]eventSubscription
	url           string // store the URL for reconnection
	done          chan struct{}
	mu            sync.Mutex
}

// NewWSClient creates a new WS client for the relay.
func NewWSClient(url string) (*WSClient, error) {
	return &WSClient{
		subscriptions: make(map[relayEvent]eventSubscription),
		url:           url,
		done:          make(chan struct{}),
	}, nil
}

func (c *WSClient) getSubscription(eventName relayEvent) (eventSubscription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[eventName]
	return sub, ok
}

// SubscribeIntentStatus sends the subscription request and starts processing
// incoming messages, returning a channel to receive status events.
func (c *WSClient) SubscribeIntentStatus(ctx context.Context) <-chan *gateway.StatusEvent {
	c.tryUntilSubscribe(ctx, statusEventQuery, statusEventType)

	events := make(chan *gateway.StatusEvent)

	// Start the goroutine to read messages.
	go c.readStatusMessages(ctx, events)

	return events
}

// tryUntilSubscribe endlessly tries to subscribe and establish a websocket
// connection for the given relay event type.
func (c *WSClient) tryUntilSubscribe(ctx context.Context, eventQuery string, eventType relayEvent) {
	firstTime := true
	for {
		if !firstTime {
			time.Sleep(reconnectInterval)
		}
		firstTime = false

		// Check for context cancellation.
		select {
		case <-ctx.Done():
			log.Info("Context cancelled during reconnection", "event", eventType)
			return
		case <-c.done:
			log.Info("Client unsubscribed during reconnection", "event", eventType)
			return
		default:
		}

		sub, ok := c.getSubscription(eventType)
		if ok {
			select {
			case <-sub.done:
				log.Info("Client unsubscribed during reconnection", "event", eventType)
				return
			default:
			}
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			log.Error("failed to dial websocket on relay subscription", "event", eventType, "err", err)
			continue
		}

		// Build the subscription request.
		req := subscriptionRequest{
			JSONRPC: "2.0",
			Method:  "subscribe",
			ID:      0,
		}
		req.Params.Query = eventQuery

		if err := conn.WriteJSON(req); err != nil {
			log.Error("failed to send subscription request on relay subscription", "event", eventType, "err", err)
			conn.Close()

			continue
		}

		c.mu.Lock()
		c.subscriptions[eventType] = eventSubscription{
			conn: conn,
			done: make(chan struct{}),
		}
		c.mu.Unlock()

		log.Info("Successfully connected on relay subscription", "event", eventType)
		return
	}
}

// readStatusMessages continuously reads messages from the websocket,
// handling reconnections if necessary.
func (c *WSClient) readStatusMessages(ctx context.Context, events chan *gateway.StatusEvent) {
	defer close(events)

	sub, ok := c.getSubscription(statusEventType)
	if !ok || sub.conn == nil {
		c.tryUntilSubscribe(ctx, statusEventQuery, statusEventType)
		sub, _ = c.getSubscription(statusEventType)
	}

	for {
		// Check if the context or unsubscribe signal is set.
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-sub.done:
			return
		default:
			// continue to process messages
		}

		conn := sub.conn
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Error("connection lost; will attempt to reconnect on relay subscription", "error", err)

			c.tryUntilSubscribe(ctx, statusEventQuery, statusEventType)
			sub, _ = c.getSubscription(statusEventType)
			continue
		}

		var resp wsResponseStatus
		if err := json.Unmarshal(message, &resp); err != nil {
			// Skip messages that don't match the expected format.
			continue
		}

		status := gateway.Status(resp.StatusEvent.Status)
		if !status.Valid() {
			log.Debug("Skipping relay status event with unknown status", "status", resp.StatusEvent.Status)
			continue
		}

		event := &gateway.StatusEvent{
			IntentID:  resp.StatusEvent.IntentID,
			Status:    status,
			UpdatedAt: resp.StatusEvent.UpdatedAt,
		}

		// Deliver the status event, respecting context cancellation.
		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}
}

// Unsubscribe terminates the status subscription and stops the read
// routine. The subscription entry stays in the map with its done channel
// closed, so a reader racing through a reconnect attempt sees the marker
// instead of resurrecting the subscription.
func (c *WSClient) Unsubscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[statusEventType]
	if !ok {
		return nil
	}

	select {
	case <-sub.done:
		return nil
	default:
	}

	// Close the subscription for the event
	if err := sub.conn.Close(); err != nil {
		log.Error("Failed to close websocket connection", "eventType", statusEventType, "err", err)
	}

	// Send a close signal to exit all read loops
	close(sub.done)

	return nil
}

// Close cleanly terminates all existing websocket listeners and connections.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	default:
	}

	// Close the global channel sending a signal to all subscribers
	close(c.done)

	for eventType, subscription := range c.subscriptions {
		if err := subscription.conn.Close(); err != nil {
			log.Error("Failed to close websocket connection", "eventType", eventType, "err", err)
		}

		select {
		case <-subscription.done:
		default:
			close(subscription.done)
		}
	}

	return nil
}
