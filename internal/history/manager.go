// Package history keeps the account's event history: paged fetches through
// tonapi, an in-memory event cache and push refreshes from the account stream.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tonsigner/tonsigner/internal/tonapi"
)

var log = logger.GetOrCreate("history")

const (
	pageLimit        = 50
	DefaultCacheSize = 1000
	reconnectDelay   = 5 * time.Second
)

// API is the tonapi surface the manager reads from.
type API interface {
	GetAccountEvents(ctx context.Context, accountID string, q tonapi.EventsQuery) (*tonapi.AccountEvents, error)
	GetEvent(ctx context.Context, eventID string) (*tonapi.Event, error)
}

// Streamer delivers account transaction notices.
type Streamer interface {
	SubscribeAccount(ctx context.Context, accountID string, out chan<- tonapi.TransactionNotice) error
}

// Args groups the dependencies of a Manager.
type Args struct {
	AccountID string
	API       API
	Stream    Streamer
	CacheSize int
	Clock     mclock.Clock
}

// Manager owns the history of one account.
type Manager struct {
	accountID string
	api       API
	stream    Streamer
	clock     mclock.Clock
	cache     *lru.Cache[string, tonapi.Event]

	updates event.FeedOf[[]Transaction]
	scope   event.SubscriptionScope

	mu        sync.Mutex
	cancel    context.CancelFunc
	destroyed bool
}

// NewManager validates args and creates a manager.
func NewManager(args Args) (*Manager, error) {
	if args.AccountID == "" {
		return nil, errors.New("history: empty account id")
	}
	if args.API == nil {
		return nil, errors.New("history: nil api")
	}
	size := args.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	clock := args.Clock
	if clock == nil {
		clock = mclock.System{}
	}
	return &Manager{
		accountID: args.AccountID,
		api:       args.API,
		stream:    args.Stream,
		clock:     clock,
		cache:     lru.NewCache[string, tonapi.Event](size),
	}, nil
}

// AccountID is the account this manager follows.
func (m *Manager) AccountID() string {
	return m.accountID
}

// Fetch loads one page of at most 50 events older than beforeLt (0 for the
// newest page) and caches every event by id.
func (m *Manager) Fetch(ctx context.Context, beforeLt int64) (*tonapi.AccountEvents, error) {
	page, err := m.api.GetAccountEvents(ctx, m.accountID, tonapi.EventsQuery{
		Limit:       pageLimit,
		BeforeLt:    beforeLt,
		SubjectOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	for _, ev := range page.Events {
		m.cache.Add(ev.EventID, ev)
	}
	return page, nil
}

// FetchByID loads the event behind txID from the API and maps the action.
func (m *Manager) FetchByID(ctx context.Context, txID string) (*Transaction, error) {
	eventID, idx, err := ParseTxID(txID)
	if err != nil {
		return nil, err
	}
	ev, err := m.api.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, tonapi.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		return nil, fmt.Errorf("fetch event: %w", err)
	}
	m.cache.Add(ev.EventID, *ev)
	return mapAccountEvent(m.accountID, *ev, idx)
}

// GetCachedByID maps txID from the cache without touching the network.
func (m *Manager) GetCachedByID(txID string) (*Transaction, bool) {
	eventID, idx, err := ParseTxID(txID)
	if err != nil {
		return nil, false
	}
	ev, ok := m.cache.Get(eventID)
	if !ok {
		return nil, false
	}
	tx, err := mapAccountEvent(m.accountID, ev, idx)
	if err != nil {
		return nil, false
	}
	return tx, true
}

// Refetch reloads the newest page and publishes it to subscribers.
func (m *Manager) Refetch(ctx context.Context) ([]Transaction, error) {
	page, err := m.Fetch(ctx, 0)
	if err != nil {
		return nil, err
	}
	txs := MapEvents(m.accountID, page.Events)
	m.updates.Send(txs)
	return txs, nil
}

// SubscribeUpdates delivers every refetched page on ch until Destroy. After
// Destroy it returns nil.
func (m *Manager) SubscribeUpdates(ch chan<- []Transaction) event.Subscription {
	return m.scope.Track(m.updates.Subscribe(ch))
}

// Listen follows the account stream and refetches on every notice. It
// reconnects after stream failures and returns when ctx is done or the
// manager is destroyed.
func (m *Manager) Listen(ctx context.Context) error {
	if m.stream == nil {
		return errors.New("history: no stream configured")
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrManagerDestroyed
	}
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	log.Info("listening for transactions", "account", m.accountID)
	for {
		notices := make(chan tonapi.TransactionNotice)
		errc := make(chan error, 1)
		go func() { errc <- m.stream.SubscribeAccount(ctx, m.accountID, notices) }()

		err := m.consume(ctx, notices, errc)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("transaction stream dropped", "account", m.accountID, "error", err)

		select {
		case <-m.clock.After(reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) consume(ctx context.Context, notices <-chan tonapi.TransactionNotice, errc <-chan error) error {
	for {
		select {
		case n := <-notices:
			log.Debug("transaction notice", "account", n.AccountID, "lt", n.Lt)
			if _, err := m.Refetch(ctx); err != nil {
				log.Warn("refetch failed", "error", err)
			}
		case err := <-errc:
			return err
		}
	}
}

// Destroy stops Listen, ends update subscriptions and drops the cache.
func (m *Manager) Destroy() {
	m.mu.Lock()
	m.destroyed = true
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	m.scope.Close()
	m.cache.Purge()
}
