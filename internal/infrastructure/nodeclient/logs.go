package nodeclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

const subscriberRingSize = 256

// subscriber is one log consumer with a bounded ring: when the consumer
// falls behind, the oldest lines are dropped.
type subscriber struct {
	mu    sync.Mutex
	ring  []string
	start int
	count int
	wake  chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		ring: make([]string, subscriberRingSize),
		wake: make(chan struct{}, 1),
	}
}

func (s *subscriber) push(line string) {
	s.mu.Lock()
	if s.count == len(s.ring) {
		s.start = (s.start + 1) % len(s.ring)
		s.count--
	}
	s.ring[(s.start+s.count)%len(s.ring)] = line
	s.count++
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return nil
	}
	out := make([]string, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(s.start+i)%len(s.ring)])
	}
	s.start = 0
	s.count = 0
	return out
}

// Subscription is a live log feed for one consumer.
type Subscription struct {
	hub *LogHub
	id  uint64
	sub *subscriber
}

// Wait blocks until lines are available or the context ends, then returns
// the buffered lines.
func (s *Subscription) Wait(ctx context.Context) ([]string, error) {
	if lines := s.sub.drain(); len(lines) > 0 {
		return lines, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.sub.wake:
		return s.sub.drain(), nil
	}
}

// Close detaches the consumer; the pump stops when the last one leaves.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// LogHub fans one node's WebSocket log stream out to panel-side consumers.
// The pump runs only while at least one subscriber is attached.
type LogHub struct {
	client *Client
	logger logger.Interface

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	cancel context.CancelFunc
}

func newLogHub(c *Client, log logger.Interface) *LogHub {
	return &LogHub{
		client: c,
		logger: log,
		subs:   make(map[uint64]*subscriber),
	}
}

// Subscribe attaches a consumer, starting the pump on first attach.
func (h *LogHub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := newSubscriber()
	h.subs[h.nextID] = sub

	if h.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		goroutine.SafeGo(h.logger, fmt.Sprintf("node-%d-log-pump", h.client.nodeID), func() {
			h.pump(ctx)
		})
	}
	return &Subscription{hub: h, id: h.nextID, sub: sub}
}

func (h *LogHub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
	if len(h.subs) == 0 && h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Stop detaches the pump regardless of subscribers, used on disconnect.
func (h *LogHub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *LogHub) broadcast(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		sub.push(line)
	}
}

// pump maintains the WebSocket to the node's /logs endpoint, reconnecting
// with exponential backoff until cancelled.
func (h *LogHub) pump(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if err := h.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			h.logger.Debugw("node log stream interrupted, reconnecting",
				"node_id", h.client.nodeID, "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
	}
}

func (h *LogHub) readOnce(ctx context.Context) error {
	sid := h.client.session()
	if sid == "" {
		return fmt.Errorf("no session")
	}

	url := fmt.Sprintf("wss://%s:%d/logs?session_id=%s", h.client.address, h.client.rpcPort, sid)
	dialer := websocket.Dialer{
		TLSClientConfig:  h.client.tlsConf,
		HandshakeTimeout: probeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Detail: err.Error()}
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		h.broadcast(string(msg))
	}
}
