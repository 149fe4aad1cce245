package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Feed fans committed events out to per-account streams.
type Feed interface {
	Deliver(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, accountID string) (*Subscription, error)
}

// Subscription is a live stream of encoded events for one account.
type Subscription struct {
	C     <-chan []byte
	close func() error
	once  sync.Once
}

// Close stops the stream. It is safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() { err = s.close() })
	return err
}

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func uniqueAudience(event Event) []string {
	seen := make(map[string]struct{}, len(event.Audience))
	out := make([]string, 0, len(event.Audience))
	for _, id := range event.Audience {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RedisFeed publishes events on one pub/sub channel per account.
type RedisFeed struct {
	client *redis.Client
	prefix string
}

// NewRedisFeed builds a feed publishing to "<prefix>:<accountID>" channels.
func NewRedisFeed(client *redis.Client, prefix string) *RedisFeed {
	if prefix == "" {
		prefix = "feed"
	}
	return &RedisFeed{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for accountID.
func (f *RedisFeed) Channel(accountID string) string {
	return f.prefix + ":" + accountID
}

func (f *RedisFeed) Deliver(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range uniqueAudience(event) {
		if err := f.client.Publish(ctx, f.Channel(id), payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *RedisFeed) Subscribe(ctx context.Context, accountID string) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.Channel(accountID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-done:
				return
			}
		}
	}()

	return &Subscription{C: out, close: func() error {
		close(done)
		return pubsub.Close()
	}}, nil
}

// LocalFeed is an in-process Feed for single-instance deployments and tests.
// Slow subscribers drop events rather than block publishers.
type LocalFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

// NewLocalFeed returns an empty in-process feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[chan []byte]struct{})}
}

func (f *LocalFeed) Deliver(_ context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range uniqueAudience(event) {
		for ch := range f.subs[id] {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context, accountID string) (*Subscription, error) {
	ch := make(chan []byte, 16)
	f.mu.Lock()
	if f.subs[accountID] == nil {
		f.subs[accountID] = make(map[chan []byte]struct{})
	}
	f.subs[accountID][ch] = struct{}{}
	f.mu.Unlock()

	return &Subscription{C: ch, close: func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[accountID], ch)
		if len(f.subs[accountID]) == 0 {
			delete(f.subs, accountID)
		}
		close(ch)
		return nil
	}}, nil
}
