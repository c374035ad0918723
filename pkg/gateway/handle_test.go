package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/enums"
)

type slowGateway struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (g *slowGateway) SendMutation(ctx context.Context, m Mutation) (Receipt, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		prev := g.maxSeen.Load()
		if n <= prev || g.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return Receipt{URI: "at://did:plc:me/app.bsky.feed.post/1"}, nil
}

func (g *slowGateway) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	return json.RawMessage(`{"resource":"` + string(req.Resource) + `"}`), nil
}

func TestHandleWithoutSessionIsNotAuthenticated(t *testing.T) {
	h := NewHandle()
	_, err := h.Send(context.Background(), Mutation{Kind: enums.MutationKindCreatePost})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotAuthenticated) {
		t.Fatalf("expected NOT_AUTHENTICATED, got %v", err)
	}
	if !pkgerrors.IsQueueable(err) {
		t.Fatalf("missing session must be queueable")
	}
}

func TestHandleSerializesCalls(t *testing.T) {
	h := NewHandle()
	gw := &slowGateway{}
	if err := h.Attach(context.Background(), gw); err != nil {
		t.Fatalf("attach: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Send(context.Background(), Mutation{Kind: enums.MutationKindCreatePost}); err != nil {
				t.Errorf("send: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := gw.maxSeen.Load(); got != 1 {
		t.Fatalf("expected at most one call in flight, saw %d", got)
	}
}

func TestHandleFetchAndDetach(t *testing.T) {
	h := NewHandle()
	ctx := context.Background()
	if err := h.Attach(ctx, &slowGateway{}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	snapshot, err := h.Fetch(ctx, Request{Resource: enums.ResourceTimeline})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(snapshot) != `{"resource":"timeline"}` {
		t.Fatalf("unexpected snapshot %s", snapshot)
	}
	if err := h.Detach(ctx); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if h.Attached() {
		t.Fatalf("expected handle to be empty after detach")
	}
}

func TestHandleRespectsContextWhileBusy(t *testing.T) {
	h := NewHandle()
	if err := h.Attach(context.Background(), &slowGateway{}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = h.Do(context.Background(), func(ctx context.Context, gw Gateway) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Send(ctx, Mutation{}); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded while lock held, got %v", err)
	}
	close(release)
}

func TestHandleAbandonedWaitDoesNotLeakSlot(t *testing.T) {
	h := NewHandle()
	if err := h.Attach(context.Background(), &slowGateway{}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- h.Do(context.Background(), func(ctx context.Context, gw Gateway) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := h.Send(ctx, Mutation{})
		cancel()
		if err != context.DeadlineExceeded {
			t.Fatalf("waiter %d: expected deadline exceeded, got %v", i, err)
		}
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	receipt, err := h.Send(ctx, Mutation{})
	if err != nil {
		t.Fatalf("expected slot to be free after abandoned waits, got %v", err)
	}
	if receipt.URI == "" {
		t.Fatalf("expected the gateway receipt to be passed through")
	}
	if err := h.Detach(ctx); err != nil {
		t.Fatalf("detach: %v", err)
	}
}
