package pubsub

import (
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/ValentinKolb/dMQ/rpc/socket"
	"github.com/ValentinKolb/dMQ/rpc/topic"
	"sync"
)

// --------------------------------------------------------------------------
// Subscriber
// --------------------------------------------------------------------------

// SubSocket receives messages and filters them by topic. The topic of a message
// is its first part. Without subscriptions every message is delivered.
type SubSocket struct {
	*socket.Socket

	mu            sync.RWMutex
	subscriptions []*topic.Pattern
}

// NewSubSocket creates an unbound subscriber
func NewSubSocket(config common.SocketConfig, options ...socket.Option) *SubSocket {
	s := &SubSocket{}

	opts := make([]socket.Option, 0, len(options)+1)
	opts = append(opts, options...)
	opts = append(opts, socket.WithBehavior(&subBehavior{sub: s}))
	s.Socket = socket.New(config, opts...)
	return s
}

// Subscribe adds a pattern (see package topic) and returns it compiled
func (s *SubSocket) Subscribe(pattern string) *topic.Pattern {
	p := topic.Compile(pattern)

	s.mu.Lock()
	s.subscriptions = append(s.subscriptions, p)
	s.mu.Unlock()

	Logger.Infof("Subscribed to %q", pattern)
	return p
}

// Unsubscribe removes every subscription with the same pattern text. Unknown
// patterns are ignored.
func (s *SubSocket) Unsubscribe(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subscriptions[:0]
	for _, p := range s.subscriptions {
		if p.String() != pattern {
			kept = append(kept, p)
		}
	}
	clear(s.subscriptions[len(kept):])
	s.subscriptions = kept

	Logger.Infof("Unsubscribed from %q", pattern)
}

// ClearSubscriptions removes all subscriptions
func (s *SubSocket) ClearSubscriptions() {
	s.mu.Lock()
	s.subscriptions = nil
	s.mu.Unlock()
}

func (s *SubSocket) HasSubscriptions() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions) > 0
}

// Matches reports whether any subscription matches the topic
func (s *SubSocket) Matches(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.subscriptions {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// Subscriptions returns the pattern texts in subscription order
func (s *SubSocket) Subscriptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.subscriptions))
	for i, p := range s.subscriptions {
		out[i] = p.String()
	}
	return out
}

// Send always fails, subscribers only receive
func (s *SubSocket) Send(...[]byte) error {
	return ErrSubscriberSend
}

// SendStrings always fails, subscribers only receive
func (s *SubSocket) SendStrings(...string) error {
	return ErrSubscriberSend
}

// subBehavior filters inbound messages by the subscriptions
type subBehavior struct {
	sub *SubSocket
}

func (b *subBehavior) HandleReady()                     {}
func (b *subBehavior) HandleConnect(*socket.Connection) {}

func (b *subBehavior) Accept(msg framing.Message) bool {
	if !b.sub.HasSubscriptions() {
		return true
	}
	if len(msg) == 0 {
		return false
	}
	name := msg.Topic()
	if !b.sub.Matches(name) {
		Logger.Debugf("Not subscribed to %q", name)
		return false
	}
	return true
}
