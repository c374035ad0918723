package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/semaphore"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
)

// Handle is the application-wide slot holding the active session client.
// At most one call runs through it at a time; an empty slot yields
// NOT_AUTHENTICATED.
type Handle struct {
	sem *semaphore.Weighted

	mu sync.RWMutex
	gw Gateway
}

func NewHandle() *Handle {
	return &Handle{sem: semaphore.NewWeighted(1)}
}

func (h *Handle) acquire(ctx context.Context) error {
	return h.sem.Acquire(ctx, 1)
}

func (h *Handle) release() {
	h.sem.Release(1)
}

// Attach installs gw once no call is in flight.
func (h *Handle) Attach(ctx context.Context, gw Gateway) error {
	if err := h.acquire(ctx); err != nil {
		return err
	}
	defer h.release()
	h.mu.Lock()
	h.gw = gw
	h.mu.Unlock()
	return nil
}

// Detach clears the slot once no call is in flight.
func (h *Handle) Detach(ctx context.Context) error {
	return h.Attach(ctx, nil)
}

// Attached reports whether a session client is installed.
func (h *Handle) Attached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gw != nil
}

// Do runs fn with exclusive access to the attached gateway. The lock is held
// for the whole of fn, so a batch of calls inside fn is not interleaved with
// other callers.
func (h *Handle) Do(ctx context.Context, fn func(ctx context.Context, gw Gateway) error) error {
	if err := h.acquire(ctx); err != nil {
		return err
	}
	defer h.release()

	h.mu.RLock()
	gw := h.gw
	h.mu.RUnlock()
	if gw == nil {
		return ErrNoSession()
	}
	return fn(ctx, gw)
}

func (h *Handle) Send(ctx context.Context, m Mutation) (Receipt, error) {
	var out Receipt
	err := h.Do(ctx, func(ctx context.Context, gw Gateway) error {
		receipt, err := gw.SendMutation(ctx, m)
		if err != nil {
			return err
		}
		out = receipt
		return nil
	})
	return out, err
}

func (h *Handle) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	var out json.RawMessage
	err := h.Do(ctx, func(ctx context.Context, gw Gateway) error {
		snapshot, err := gw.Fetch(ctx, req)
		if err != nil {
			return err
		}
		out = snapshot
		return nil
	})
	return out, err
}

func ErrNoSession() error {
	return pkgerrors.New(pkgerrors.CodeNotAuthenticated, "no active session")
}
