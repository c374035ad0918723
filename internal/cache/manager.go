package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/metrics"
	"github.com/bluehorizon/skydesk/pkg/notify"
)

// RootKey is the key of the cursor-less first page.
const RootKey = ""

// Policy decides which keys of a resource are cached and refreshed.
type Policy int

const (
	// RootOnly caches the root page; any other key is fetched straight through.
	RootOnly Policy = iota
	// EveryCursor caches every key but only refreshes the root in the background.
	EveryCursor
	// Keyed caches and refreshes every key (one entry per handle).
	Keyed
)

// Fetcher loads a fresh snapshot from the remote.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

type entryStore interface {
	Find(ctx context.Context, resource enums.ResourceType, identity, key string) (*models.CacheEntry, error)
	Put(ctx context.Context, resource enums.ResourceType, identity, key string, payload []byte, cachedAt time.Time) error
}

type ManagerParams struct {
	Logger   *logger.Logger
	Store    entryStore
	Resource enums.ResourceType
	Policy   Policy
	Notifier notify.Notifier
	Metrics  *metrics.CacheMetrics
	Now      func() time.Time
}

// Manager serves one resource type stale-while-revalidate.
type Manager struct {
	logg     *logger.Logger
	store    entryStore
	resource enums.ResourceType
	policy   Policy
	event    enums.EventName
	notifier notify.Notifier
	metrics  *metrics.CacheMetrics
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if _, ok := params.Resource.CacheTable(); !ok {
		return nil, errors.New("resource " + string(params.Resource) + " is not cacheable")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		logg:     params.Logger,
		store:    params.Store,
		resource: params.Resource,
		policy:   params.Policy,
		event:    eventFor(params.Resource),
		notifier: notifier,
		metrics:  params.Metrics,
		now:      now,
		inflight: make(map[string]struct{}),
	}, nil
}

func eventFor(resource enums.ResourceType) enums.EventName {
	switch resource {
	case enums.ResourceNotifications:
		return enums.EventNotificationsUpdated
	case enums.ResourceProfile:
		return enums.EventProfileUpdated
	default:
		return enums.EventTimelineUpdated
	}
}

func (m *Manager) cacheable(key string) bool {
	return m.policy != RootOnly || key == RootKey
}

func (m *Manager) refreshable(key string) bool {
	return m.policy == Keyed || key == RootKey
}

// Read returns the cached snapshot for (identity, key) when there is one and
// refreshes it in the background; otherwise it fetches synchronously and
// stores the result. A failed fetch falls back to whatever is cached for the
// exact key.
func (m *Manager) Read(ctx context.Context, identity, key string, fetch Fetcher) (json.RawMessage, error) {
	resource := string(m.resource)
	if !m.cacheable(key) {
		m.metrics.Inc(resource, metrics.CachePassthrough)
		return fetch(ctx)
	}

	ctx = m.logg.WithFields(ctx, map[string]any{
		"resource":  resource,
		"cache_key": key,
		"identity":  identity,
	})

	cached, err := m.store.Find(ctx, m.resource, identity, key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		m.metrics.Inc(resource, metrics.CacheHit)
		if m.refreshable(key) {
			m.refresh(ctx, identity, key, fetch)
		}
		return cached.Payload, nil
	}

	m.metrics.Inc(resource, metrics.CacheMiss)
	snapshot, fetchErr := fetch(ctx)
	if fetchErr != nil {
		fallback, err := m.store.Find(ctx, m.resource, identity, key)
		if err != nil || fallback == nil {
			return nil, fetchErr
		}
		m.metrics.Inc(resource, metrics.CacheFallback)
		m.logg.Warn(m.logg.WithField(ctx, "error", fetchErr.Error()), "remote read failed; serving cached snapshot")
		return fallback.Payload, nil
	}
	if err := m.store.Put(ctx, m.resource, identity, key, snapshot, m.now()); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// refresh starts a detached fetch-and-store for key unless one is already
// running. Failures are logged and counted; only a stored snapshot is
// announced to subscribers.
func (m *Manager) refresh(ctx context.Context, identity, key string, fetch Fetcher) {
	flight := identity + "\x00" + key
	m.mu.Lock()
	if _, busy := m.inflight[flight]; busy {
		m.mu.Unlock()
		return
	}
	m.inflight[flight] = struct{}{}
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.inflight, flight)
			m.mu.Unlock()
		}()

		snapshot, err := fetch(ctx)
		if err != nil {
			m.metrics.Inc(string(m.resource), metrics.CacheRefreshError)
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "background cache refresh failed")
			return
		}
		if err := m.store.Put(ctx, m.resource, identity, key, snapshot, m.now()); err != nil {
			m.metrics.Inc(string(m.resource), metrics.CacheRefreshStoreError)
			m.logg.Error(ctx, "failed to store refreshed snapshot", err)
			return
		}
		m.metrics.Inc(string(m.resource), metrics.CacheRefreshOK)
		m.notifier.Publish(ctx, m.event, m.eventPayload(key, snapshot))
	}()
}

func (m *Manager) eventPayload(key string, snapshot json.RawMessage) any {
	if m.resource == enums.ResourceProfile {
		return notify.ProfilePayload{Handle: key, Snapshot: snapshot}
	}
	return notify.SnapshotPayload{Snapshot: snapshot}
}

// Wait blocks until in-flight background refreshes finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}
