package notify

import (
	"errors"
	"log/slog"
	"sync"

	"devflow/internal/models"
)

// ErrNoSubscribers is returned by Push when the recipient has no open stream.
var ErrNoSubscribers = errors.New("no connected clients")

// ChannelKey names the group a user's connections join.
func ChannelKey(userID string) string {
	return "user:" + userID
}

// Subscription is one live client connection.
type Subscription struct {
	key string
	ch  chan models.Notification
}

// C delivers notifications for the subscribed user.
func (s *Subscription) C() <-chan models.Notification {
	return s.ch
}

// Hub keeps the open streams grouped per user and fans notifications out to
// them. Sends never block: a full client buffer drops the message.
type Hub struct {
	mu     sync.Mutex
	groups map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscriptions buffer up to buffer messages.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{groups: make(map[string]map[*Subscription]struct{}), buffer: buffer, logger: logger}
}

// Subscribe joins a new connection to the user's group.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{key: ChannelKey(userID), ch: make(chan models.Notification, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[sub.key]
	if !ok {
		group = make(map[*Subscription]struct{})
		h.groups[sub.key] = group
	}
	group[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the connection and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[sub.key]
	if !ok {
		return
	}
	if _, ok := group[sub]; !ok {
		return
	}
	delete(group, sub)
	close(sub.ch)
	if len(group) == 0 {
		delete(h.groups, sub.key)
	}
}

// Connections reports how many streams the user has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[ChannelKey(userID)])
}

// Push broadcasts n to every connection of the user.
func (h *Hub) Push(userID string, n models.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[ChannelKey(userID)]
	if len(group) == 0 {
		return ErrNoSubscribers
	}
	for sub := range group {
		select {
		case sub.ch <- n:
		default:
			h.logger.Debug("dropping notification for slow client", slog.String("channel", sub.key))
		}
	}
	return nil
}
