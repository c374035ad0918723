package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bluehorizon/skydesk/internal/cron"
	"github.com/bluehorizon/skydesk/internal/posts"
	"github.com/bluehorizon/skydesk/internal/session"
	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/notify"
	"github.com/bluehorizon/skydesk/pkg/outbox"
	"github.com/bluehorizon/skydesk/pkg/pagination"
	"github.com/bluehorizon/skydesk/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data %s: %v", envelope.Data, err)
	}
}

type testPostsService struct {
	createFn func(ctx context.Context, c types.Composition) (posts.Result, error)
}

func (s *testPostsService) Create(ctx context.Context, c types.Composition) (posts.Result, error) {
	return s.createFn(ctx, c)
}

func TestCreatePostStatuses(t *testing.T) {
	cases := []struct {
		name   string
		result posts.Result
		err    error
		status int
	}{
		{name: "sent", result: posts.Result{Status: posts.StatusSent}, status: http.StatusCreated},
		{name: "queued", result: posts.Result{Status: posts.StatusQueued, MutationID: uuid.NewString()}, status: http.StatusAccepted},
		{name: "rejected", err: pkgerrors.New(pkgerrors.CodeInternal, "boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got types.Composition
			svc := &testPostsService{createFn: func(ctx context.Context, c types.Composition) (posts.Result, error) {
				got = c
				return tc.result, tc.err
			}}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"text":"hello","replyTo":"at://did:plc:x/app.bsky.feed.post/1"}`))
			resp := httptest.NewRecorder()
			CreatePost(svc, testLogger())(resp, req)

			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if got.Text != "hello" || got.ReplyTo == "" {
				t.Fatalf("unexpected composition %+v", got)
			}
		})
	}
}

func TestCreatePostRejectsBadBody(t *testing.T) {
	svc := &testPostsService{createFn: func(context.Context, types.Composition) (posts.Result, error) {
		t.Fatal("service should not be called")
		return posts.Result{}, nil
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"text":"hi","replyTo":"https://example.com"}`))
	resp := httptest.NewRecorder()
	CreatePost(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

type memoryDrafts struct {
	data map[string]types.Composition
}

func (m *memoryDrafts) Save(_ context.Context, key string, c types.Composition) error {
	if c.IsEmpty() {
		delete(m.data, key)
		return nil
	}
	m.data[key] = c
	return nil
}

func (m *memoryDrafts) Load(_ context.Context, key string) (*types.Composition, error) {
	c, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memoryDrafts) Clear(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestDraftEndpoints(t *testing.T) {
	store := &memoryDrafts{data: map[string]types.Composition{}}
	logg := testLogger()
	parent := "at://did:plc:x/app.bsky.feed.post/1"

	req := httptest.NewRequest(http.MethodPut, "/api/v1/drafts", strings.NewReader(`{"text":"half a thought","replyTo":"`+parent+`"}`))
	resp := httptest.NewRecorder()
	SaveDraft(store, logg)(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("save: unexpected status %d", resp.Code)
	}
	var saved map[string]string
	decodeData(t, resp, &saved)
	if saved["key"] != "reply:"+parent {
		t.Fatalf("unexpected key %q", saved["key"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/drafts?replyTo="+parent, nil)
	resp = httptest.NewRecorder()
	LoadDraft(store, logg)(resp, req)
	var loaded types.Composition
	decodeData(t, resp, &loaded)
	if loaded.Text != "half a thought" {
		t.Fatalf("unexpected draft %+v", loaded)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/drafts?replyTo="+parent, nil)
	resp = httptest.NewRecorder()
	ClearDraft(store, logg)(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("clear: unexpected status %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/drafts", nil)
	resp = httptest.NewRecorder()
	LoadDraft(store, logg)(resp, req)
	if body := strings.TrimSpace(resp.Body.String()); body != `{"data":null}` {
		t.Fatalf("expected null draft, got %s", body)
	}
}

type testSession struct {
	identity string
	current  *session.Info
	err      error
}

func (s *testSession) Login(context.Context, session.LoginInput) (session.Info, error) {
	return session.Info{}, s.err
}
func (s *testSession) Resume(context.Context) (session.Info, error) { return session.Info{}, s.err }
func (s *testSession) Logout(context.Context) error                 { return s.err }
func (s *testSession) Current(context.Context) (*session.Info, error) {
	return s.current, s.err
}
func (s *testSession) CurrentIdentity(context.Context) (string, error) {
	if s.identity == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotAuthenticated, "no active session")
	}
	return s.identity, nil
}

func TestCurrentSessionNullWhenSignedOut(t *testing.T) {
	resp := httptest.NewRecorder()
	CurrentSession(&testSession{}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	if body := strings.TrimSpace(resp.Body.String()); body != `{"data":null}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestLoginMapsCredentialFailure(t *testing.T) {
	svc := &testSession{err: pkgerrors.New(pkgerrors.CodeCredential, "invalid identifier or password")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", strings.NewReader(`{"identifier":"alice.test","password":"nope"}`))
	resp := httptest.NewRecorder()
	Login(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "CREDENTIAL_FAILURE") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

type testOutbox struct {
	rows     []models.QueuedMutation
	statuses []enums.MutationStatus
}

func (o *testOutbox) Get(_ context.Context, id uuid.UUID) (*models.QueuedMutation, error) {
	for i := range o.rows {
		if o.rows[i].ID == id {
			return &o.rows[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "missing")
}

func (o *testOutbox) List(_ context.Context, identity string, statuses []enums.MutationStatus, _ pagination.Params) ([]models.QueuedMutation, string, error) {
	o.statuses = statuses
	var out []models.QueuedMutation
	for _, row := range o.rows {
		if row.OwnerIdentity == identity {
			out = append(out, row)
		}
	}
	return out, "", nil
}

func (o *testOutbox) ListPending(ctx context.Context, identity string) ([]models.QueuedMutation, error) {
	rows, _, err := o.List(ctx, identity, nil, pagination.Params{})
	return rows, err
}

type testTrigger struct {
	jobs  []string
	known bool
}

func (tr *testTrigger) Trigger(job string) bool {
	tr.jobs = append(tr.jobs, job)
	return tr.known
}

func newQueuedRow(t *testing.T, owner string) models.QueuedMutation {
	t.Helper()
	payload, err := outbox.Encode(enums.MutationKindCreatePost, 1, map[string]string{"text": "hi"}, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return models.QueuedMutation{
		ID:            uuid.New(),
		OwnerIdentity: owner,
		Payload:       payload,
		Status:        enums.MutationStatusQueued,
		NextRetryAt:   time.Now(),
		CreatedAt:     time.Now(),
	}
}

func TestListMutationsFiltersByStatusAndIdentity(t *testing.T) {
	store := &testOutbox{rows: []models.QueuedMutation{newQueuedRow(t, "did:plc:alice"), newQueuedRow(t, "did:plc:bob")}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/outbox?status=queued,failed", nil)
	resp := httptest.NewRecorder()
	ListMutations(&testSession{identity: "did:plc:alice"}, store, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if len(store.statuses) != 2 || store.statuses[1] != enums.MutationStatusFailed {
		t.Fatalf("unexpected status filter %v", store.statuses)
	}
	var body mutationListResponse
	decodeData(t, resp, &body)
	if len(body.Mutations) != 1 || body.Mutations[0].Kind != enums.MutationKindCreatePost {
		t.Fatalf("unexpected mutations %+v", body.Mutations)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/outbox?status=lost", nil)
	resp = httptest.NewRecorder()
	ListMutations(&testSession{identity: "did:plc:alice"}, store, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}
}

func TestPendingMutationsScopedToIdentity(t *testing.T) {
	store := &testOutbox{rows: []models.QueuedMutation{newQueuedRow(t, "did:plc:alice"), newQueuedRow(t, "did:plc:bob")}}
	resp := httptest.NewRecorder()
	PendingMutations(&testSession{identity: "did:plc:alice"}, store, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/outbox/pending", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var body mutationListResponse
	decodeData(t, resp, &body)
	if len(body.Mutations) != 1 || body.Mutations[0].Status != enums.MutationStatusQueued {
		t.Fatalf("unexpected mutations %+v", body.Mutations)
	}
}

func TestGetMutationHidesOtherIdentities(t *testing.T) {
	row := newQueuedRow(t, "did:plc:bob")
	store := &testOutbox{rows: []models.QueuedMutation{row}}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "mutationId", row.ID.String())
	resp := httptest.NewRecorder()
	GetMutation(&testSession{identity: "did:plc:alice"}, store, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSweepOutboxRequiresSession(t *testing.T) {
	trigger := &testTrigger{known: true}
	resp := httptest.NewRecorder()
	SweepOutbox(&testSession{}, trigger, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if len(trigger.jobs) != 0 {
		t.Fatalf("expected no trigger without a session, got %v", trigger.jobs)
	}
}

func TestSweepOutboxTriggersScheduledJob(t *testing.T) {
	trigger := &testTrigger{known: true}
	resp := httptest.NewRecorder()
	SweepOutbox(&testSession{identity: "did:plc:alice"}, trigger, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var result map[string]bool
	decodeData(t, resp, &result)
	if !result["scheduled"] {
		t.Fatalf("expected scheduled, got %v", result)
	}
	if len(trigger.jobs) != 1 || trigger.jobs[0] != cron.OutboxSweepJobName {
		t.Fatalf("unexpected triggered jobs %v", trigger.jobs)
	}

	trigger = &testTrigger{}
	resp = httptest.NewRecorder()
	SweepOutbox(&testSession{identity: "did:plc:alice"}, trigger, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	decodeData(t, resp, &result)
	if result["scheduled"] {
		t.Fatalf("expected unscheduled when the job is unknown, got %v", result)
	}
}

type testFeeds struct {
	actor string
	page  pagination.Params
}

func (f *testFeeds) Get(_ context.Context, page pagination.Params) (json.RawMessage, error) {
	f.page = page
	return json.RawMessage(`{"feed":[]}`), nil
}

func (f *testFeeds) AuthorFeed(_ context.Context, actor string, page pagination.Params) (json.RawMessage, error) {
	f.actor = actor
	f.page = page
	return json.RawMessage(`{"feed":[]}`), nil
}

func TestAuthorFeedPassesActorAndPage(t *testing.T) {
	svc := &testFeeds{}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/feeds/alice.test?cursor=c2&limit=10", nil), "actor", "alice.test")
	resp := httptest.NewRecorder()
	AuthorFeed(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if svc.actor != "alice.test" || svc.page.Cursor != "c2" || svc.page.Limit != 10 {
		t.Fatalf("unexpected call %+v", svc)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return io.ErrUnexpectedEOF }

func TestHealthReadyReportsDownDependency(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthReady("dev", testLogger(), map[string]Pinger{"redis": failingPinger{}, "optional": nil})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestEventsStreamsBrokerEvents(t *testing.T) {
	broker := notify.NewBroker(nil)
	srv := httptest.NewServer(Events(broker, testLogger()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for broker.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	broker.Publish(context.Background(), enums.EventUnreadCount, notify.UnreadCountPayload{Count: 4})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Name    string                    `json:"name"`
		Payload notify.UnreadCountPayload `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Name != "unread-count" || ev.Payload.Count != 4 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

type testInteractions struct {
	InteractionsService
	likedURI   string
	likedCID   string
	unfollowed string
	err        error
}

func (s *testInteractions) Like(_ context.Context, uri, cid string) (gateway.Receipt, error) {
	s.likedURI, s.likedCID = uri, cid
	return gateway.Receipt{URI: "at://did:plc:alice/app.bsky.feed.like/1", CID: "lc"}, s.err
}

func (s *testInteractions) Unfollow(_ context.Context, uri string) error {
	s.unfollowed = uri
	return s.err
}

func TestLikeReturnsCreatedRecord(t *testing.T) {
	svc := &testInteractions{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/likes", strings.NewReader(`{"uri":"at://did:plc:a/app.bsky.feed.post/1","cid":"c1"}`))
	resp := httptest.NewRecorder()
	Like(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var receipt gateway.Receipt
	decodeData(t, resp, &receipt)
	if receipt.URI != "at://did:plc:alice/app.bsky.feed.like/1" || svc.likedCID != "c1" {
		t.Fatalf("unexpected receipt %+v / cid %q", receipt, svc.likedCID)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/likes", strings.NewReader(`{"uri":"at://x/y/z","extra":true}`))
	resp = httptest.NewRecorder()
	Like(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.Code)
	}
}

func TestUnfollowMapsRemoteFailure(t *testing.T) {
	svc := &testInteractions{}
	target := "/api/v1/follows?uri=at://did:plc:alice/app.bsky.graph.follow/1"
	resp := httptest.NewRecorder()
	Unfollow(svc, testLogger())(resp, httptest.NewRequest(http.MethodDelete, target, nil))
	if resp.Code != http.StatusNoContent || svc.unfollowed != "at://did:plc:alice/app.bsky.graph.follow/1" {
		t.Fatalf("unexpected unfollow %d %q", resp.Code, svc.unfollowed)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeNetwork, "offline")
	resp = httptest.NewRecorder()
	Unfollow(svc, testLogger())(resp, httptest.NewRequest(http.MethodDelete, target, nil))
	if resp.Code == http.StatusNoContent || !strings.Contains(resp.Body.String(), `"retryable":true`) {
		t.Fatalf("expected retryable error, got %d %s", resp.Code, resp.Body.String())
	}
}

type testSearch struct{ q, sort string }

func (s *testSearch) Posts(_ context.Context, q, sort string, _ pagination.Params) (json.RawMessage, error) {
	s.q, s.sort = q, sort
	return json.RawMessage(`{"posts":[]}`), nil
}

func (s *testSearch) Actors(context.Context, string, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"actors":[]}`), nil
}

func TestSearchPostsPassesQueryAndSort(t *testing.T) {
	svc := &testSearch{}
	resp := httptest.NewRecorder()
	SearchPosts(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/search/posts?q=gophers&sort=top&limit=5", nil))
	if resp.Code != http.StatusOK || svc.q != "gophers" || svc.sort != "top" {
		t.Fatalf("unexpected search %d %q %q", resp.Code, svc.q, svc.sort)
	}

	resp = httptest.NewRecorder()
	SearchPosts(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/search/posts?q=x&limit=abc", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.Code)
	}
}
