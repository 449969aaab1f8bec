package repository

import (
	"context"
	"sync"
)

// LocalPubSub in-process RoomPubSub for single-node deployments and tests.
// Same contract as the redis implementation: subscriptions live until
// their ctx is cancelled, delivery is asynchronous per subscriber.
type LocalPubSub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*localSub
}

type localSub struct {
	ch chan Frame
}

// NewLocalPubSub create LocalPubSub
func NewLocalPubSub() *LocalPubSub {
	return &LocalPubSub{
		subs: make(map[string]map[int]*localSub),
	}
}

// Publish deliver the frame to every live subscriber of channel
func (l *LocalPubSub) Publish(ctx context.Context, channel string, f Frame) error {
	l.mu.Lock()
	targets := make([]*localSub, 0, len(l.subs[channel]))
	for _, s := range l.subs[channel] {
		targets = append(targets, s)
	}
	l.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- f:
		default:
			// subscriber is not draining, drop rather than block the sender
		}
	}
	return nil
}

// Subscribe register handler on channel until ctx is cancelled
func (l *LocalPubSub) Subscribe(ctx context.Context, channel string, handler func(f Frame)) error {
	s := &localSub{ch: make(chan Frame, 64)}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	if l.subs[channel] == nil {
		l.subs[channel] = make(map[int]*localSub)
	}
	l.subs[channel][id] = s
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			delete(l.subs[channel], id)
			l.mu.Unlock()
		}()
		for {
			select {
			case f := <-s.ch:
				handler(f)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
