package signer

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// AppState is the foreground state of the host app.
type AppState string

const (
	AppActive     AppState = "active"
	AppInactive   AppState = "inactive"
	AppBackground AppState = "background"
)

// Lifecycle broadcasts app state changes.
type Lifecycle struct {
	feed event.FeedOf[AppState]

	mu    sync.Mutex
	state AppState
}

// NewLifecycle starts in AppActive.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: AppActive}
}

// Set records s and notifies subscribers.
func (l *Lifecycle) Set(s AppState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.feed.Send(s)
}

func (l *Lifecycle) State() AppState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe delivers every later state change on ch.
func (l *Lifecycle) Subscribe(ch chan<- AppState) event.Subscription {
	return l.feed.Subscribe(ch)
}
