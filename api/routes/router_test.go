package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bluehorizon/skydesk/api/controllers"
	"github.com/bluehorizon/skydesk/internal/posts"
	"github.com/bluehorizon/skydesk/internal/session"
	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/metrics"
	"github.com/bluehorizon/skydesk/pkg/notify"
	"github.com/bluehorizon/skydesk/pkg/pagination"
	"github.com/bluehorizon/skydesk/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSession struct{}

func (stubSession) Login(context.Context, session.LoginInput) (session.Info, error) {
	return session.Info{DID: "did:plc:alice", Handle: "alice.test", Authenticated: true}, nil
}
func (stubSession) Resume(context.Context) (session.Info, error) { return session.Info{}, nil }
func (stubSession) Logout(context.Context) error                 { return nil }
func (stubSession) Current(context.Context) (*session.Info, error) {
	return nil, nil
}
func (stubSession) CurrentIdentity(context.Context) (string, error) {
	return "", pkgerrors.New(pkgerrors.CodeNotAuthenticated, "no active session")
}

type stubPosts struct{}

func (stubPosts) Create(context.Context, types.Composition) (posts.Result, error) {
	return posts.Result{Status: posts.StatusQueued, MutationID: uuid.NewString()}, nil
}

type stubDrafts struct{}

func (stubDrafts) Save(context.Context, string, types.Composition) error { return nil }
func (stubDrafts) Load(context.Context, string) (*types.Composition, error) {
	return nil, nil
}
func (stubDrafts) Clear(context.Context, string) error { return nil }

type stubFeeds struct{}

func (stubFeeds) Get(context.Context, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"feed":[{"uri":"at://p/1"}]}`), nil
}
func (stubFeeds) AuthorFeed(context.Context, string, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"feed":[]}`), nil
}

func (stubFeeds) Thread(_ context.Context, uri string) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"uri": uri})
}
func (stubFeeds) CustomFeed(context.Context, string, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"posts":[],"cursor":"generator"}`), nil
}

type stubGraph struct{}

func (stubGraph) Followers(_ context.Context, actor string, _ pagination.Params) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"followers_of": actor})
}
func (stubGraph) Follows(_ context.Context, actor string, _ pagination.Params) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"follows_of": actor})
}
func (stubGraph) ActorLists(context.Context, string, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"lists":[]}`), nil
}
func (stubGraph) List(_ context.Context, uri string, _ pagination.Params) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"list": map[string]string{"uri": uri}})
}
func (stubGraph) ListFeed(context.Context, string, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"posts":[],"cursor":"list"}`), nil
}

type stubSearch struct{}

func (stubSearch) Posts(_ context.Context, q, sort string, _ pagination.Params) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"q": q, "sort": sort})
}
func (stubSearch) Actors(_ context.Context, q string, _ pagination.Params) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"actors_q": q})
}

type stubInteractions struct{}

func (stubInteractions) Like(context.Context, string, string) (gateway.Receipt, error) {
	return gateway.Receipt{URI: "at://did:plc:alice/app.bsky.feed.like/1"}, nil
}
func (stubInteractions) Unlike(context.Context, string) error { return nil }
func (stubInteractions) Repost(context.Context, string, string) (gateway.Receipt, error) {
	return gateway.Receipt{URI: "at://did:plc:alice/app.bsky.feed.repost/1"}, nil
}
func (stubInteractions) Unrepost(context.Context, string) error { return nil }
func (stubInteractions) Follow(context.Context, string) (gateway.Receipt, error) {
	return gateway.Receipt{URI: "at://did:plc:alice/app.bsky.graph.follow/1"}, nil
}
func (stubInteractions) Unfollow(context.Context, string) error { return nil }
func (stubInteractions) Block(context.Context, string) (gateway.Receipt, error) {
	return gateway.Receipt{URI: "at://did:plc:alice/app.bsky.graph.block/1"}, nil
}
func (stubInteractions) Unblock(context.Context, string) error { return nil }
func (stubInteractions) Mute(context.Context, string) error    { return nil }
func (stubInteractions) Unmute(context.Context, string) error  { return nil }

type stubProfiles struct{}

func (stubProfiles) Get(_ context.Context, handle string) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"handle": handle})
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, pagination.Params) (json.RawMessage, error) {
	return json.RawMessage(`{"notifications":[]}`), nil
}
func (stubNotifications) UnreadCount(context.Context) (int, error) { return 3, nil }
func (stubNotifications) MarkRead(context.Context) error            { return nil }

type stubOutbox struct{}

func (stubOutbox) Get(context.Context, uuid.UUID) (*models.QueuedMutation, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "missing")
}
func (stubOutbox) List(context.Context, string, []enums.MutationStatus, pagination.Params) ([]models.QueuedMutation, string, error) {
	return nil, "", nil
}
func (stubOutbox) ListPending(context.Context, string) ([]models.QueuedMutation, error) {
	return nil, nil
}

type stubTrigger struct{}

func (stubTrigger) Trigger(string) bool { return true }

func newTestRouter() http.Handler {
	reg := prometheus.NewRegistry()
	metrics.NewCronJobMetrics(reg).Observe("outbox-sweep", time.Millisecond, nil)
	return NewRouter(Params{
		Env:           "dev",
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Health:        map[string]controllers.Pinger{"db": stubPinger{}},
		Gatherer:      reg,
		Session:       stubSession{},
		Posts:         stubPosts{},
		Drafts:        stubDrafts{},
		Timeline:      stubFeeds{},
		Threads:       stubFeeds{},
		Graph:         stubGraph{},
		Search:        stubSearch{},
		Interactions:  stubInteractions{},
		Profiles:      stubProfiles{},
		Notifications: stubNotifications{},
		Outbox:        stubOutbox{},
		Scheduler:     stubTrigger{},
		Events:        notify.NewBroker(nil),
	})
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter()
	cases := []struct {
		method string
		path   string
		body   string
		status int
		expect string
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK, `"live"`},
		{http.MethodGet, "/health/ready", "", http.StatusOK, `"ready"`},
		{http.MethodGet, "/metrics", "", http.StatusOK, "skydesk_scheduler_job_runs_total"},
		{http.MethodGet, "/api/v1/session", "", http.StatusOK, `{"data":null}`},
		{http.MethodPost, "/api/v1/session", `{"identifier":"alice.test","password":"pw"}`, http.StatusOK, "did:plc:alice"},
		{http.MethodDelete, "/api/v1/session", "", http.StatusNoContent, ""},
		{http.MethodPost, "/api/v1/posts", `{"text":"hi"}`, http.StatusAccepted, `"queued"`},
		{http.MethodPut, "/api/v1/drafts", `{"text":"hi"}`, http.StatusOK, "post:new"},
		{http.MethodGet, "/api/v1/timeline", "", http.StatusOK, "at://p/1"},
		{http.MethodGet, "/api/v1/feeds/alice.test", "", http.StatusOK, "feed"},
		{http.MethodGet, "/api/v1/profiles/alice.test", "", http.StatusOK, "alice.test"},
		{http.MethodGet, "/api/v1/notifications/unread-count", "", http.StatusOK, `"count":3`},
		{http.MethodPost, "/api/v1/notifications/seen", "", http.StatusOK, "seen"},
		{http.MethodGet, "/api/v1/outbox", "", http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{http.MethodPost, "/api/v1/outbox/sweep", "", http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{http.MethodGet, "/api/v1/timeline?limit=0", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{http.MethodGet, "/api/v1/threads?uri=at://did:plc:a/app.bsky.feed.post/1", "", http.StatusOK, "app.bsky.feed.post/1"},
		{http.MethodGet, "/api/v1/custom-feeds?uri=at://did:plc:f/app.bsky.feed.generator/hot", "", http.StatusOK, "generator"},
		{http.MethodGet, "/api/v1/actors/alice.test/followers", "", http.StatusOK, `"followers_of":"alice.test"`},
		{http.MethodGet, "/api/v1/actors/alice.test/follows", "", http.StatusOK, `"follows_of":"alice.test"`},
		{http.MethodGet, "/api/v1/actors/alice.test/lists", "", http.StatusOK, "lists"},
		{http.MethodGet, "/api/v1/lists?uri=at://did:plc:a/app.bsky.graph.list/l1", "", http.StatusOK, "app.bsky.graph.list/l1"},
		{http.MethodGet, "/api/v1/lists/feed?uri=at://did:plc:a/app.bsky.graph.list/l1", "", http.StatusOK, `"cursor":"list"`},
		{http.MethodGet, "/api/v1/search/posts?q=gophers&sort=top", "", http.StatusOK, `"sort":"top"`},
		{http.MethodGet, "/api/v1/search/actors?q=bob", "", http.StatusOK, `"actors_q":"bob"`},
		{http.MethodPost, "/api/v1/likes", `{"uri":"at://did:plc:a/app.bsky.feed.post/1"}`, http.StatusCreated, "app.bsky.feed.like/1"},
		{http.MethodPost, "/api/v1/likes", `{"uri":"https://example.com"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{http.MethodDelete, "/api/v1/likes?uri=at://did:plc:alice/app.bsky.feed.like/1", "", http.StatusNoContent, ""},
		{http.MethodPost, "/api/v1/reposts", `{"uri":"at://did:plc:a/app.bsky.feed.post/1","cid":"c"}`, http.StatusCreated, "app.bsky.feed.repost/1"},
		{http.MethodPost, "/api/v1/follows", `{"did":"did:plc:bob"}`, http.StatusCreated, "app.bsky.graph.follow/1"},
		{http.MethodPost, "/api/v1/follows", `{"did":"bob.test"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{http.MethodDelete, "/api/v1/follows?uri=at://did:plc:alice/app.bsky.graph.follow/1", "", http.StatusNoContent, ""},
		{http.MethodPost, "/api/v1/blocks", `{"did":"did:plc:bob"}`, http.StatusCreated, "app.bsky.graph.block/1"},
		{http.MethodPost, "/api/v1/mutes", `{"actor":"bob.test"}`, http.StatusNoContent, ""},
		{http.MethodDelete, "/api/v1/mutes?actor=bob.test", "", http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if !strings.Contains(resp.Body.String(), tc.expect) {
				t.Fatalf("expected body to contain %q, got %s", tc.expect, resp.Body.String())
			}
			if resp.Header().Get("X-Request-Id") == "" {
				t.Fatalf("expected request id header")
			}
		})
	}
}
