package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bluehorizon/skydesk/api/controllers"
	"github.com/bluehorizon/skydesk/api/middleware"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

// Params carries every service the local API exposes. Gatherer is optional;
// nil leaves /metrics unmounted.
type Params struct {
	Env           string
	Logger        *logger.Logger
	Health        map[string]controllers.Pinger
	Gatherer      prometheus.Gatherer
	Session       SessionService
	Posts         controllers.PostsService
	Drafts        controllers.DraftsService
	Timeline      controllers.TimelineService
	Threads       controllers.ThreadService
	Graph         controllers.GraphService
	Search        controllers.SearchService
	Interactions  controllers.InteractionsService
	Profiles      controllers.ProfilesService
	Notifications controllers.NotificationsService
	Outbox        controllers.OutboxService
	Scheduler     controllers.SweepTrigger
	Events        controllers.EventSource
}

// SessionService is the session surface plus the identity lookup the outbox
// routes scope by.
type SessionService interface {
	controllers.SessionService
	controllers.IdentityProvider
}

func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	logg := p.Logger
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Env))
		r.Get("/ready", controllers.HealthReady(p.Env, logg, p.Health))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/events", controllers.Events(p.Events, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.CurrentSession(p.Session, logg))
			r.Post("/", controllers.Login(p.Session, logg))
			r.Post("/resume", controllers.ResumeSession(p.Session, logg))
			r.Delete("/", controllers.Logout(p.Session, logg))
		})

		r.Post("/posts", controllers.CreatePost(p.Posts, logg))

		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", controllers.LoadDraft(p.Drafts, logg))
			r.Put("/", controllers.SaveDraft(p.Drafts, logg))
			r.Delete("/", controllers.ClearDraft(p.Drafts, logg))
		})

		r.Get("/timeline", controllers.Timeline(p.Timeline, logg))
		r.Get("/feeds/{actor}", controllers.AuthorFeed(p.Timeline, logg))
		r.Get("/profiles/{handle}", controllers.Profile(p.Profiles, logg))
		r.Get("/threads", controllers.Thread(p.Threads, logg))
		r.Get("/custom-feeds", controllers.CustomFeed(p.Threads, logg))

		r.Route("/actors/{actor}", func(r chi.Router) {
			r.Get("/followers", controllers.Followers(p.Graph, logg))
			r.Get("/follows", controllers.Follows(p.Graph, logg))
			r.Get("/lists", controllers.ActorLists(p.Graph, logg))
		})
		r.Get("/lists", controllers.ListView(p.Graph, logg))
		r.Get("/lists/feed", controllers.ListFeed(p.Graph, logg))

		r.Route("/search", func(r chi.Router) {
			r.Get("/posts", controllers.SearchPosts(p.Search, logg))
			r.Get("/actors", controllers.SearchActors(p.Search, logg))
		})

		r.Post("/likes", controllers.Like(p.Interactions, logg))
		r.Delete("/likes", controllers.Unlike(p.Interactions, logg))
		r.Post("/reposts", controllers.Repost(p.Interactions, logg))
		r.Delete("/reposts", controllers.Unrepost(p.Interactions, logg))
		r.Post("/follows", controllers.Follow(p.Interactions, logg))
		r.Delete("/follows", controllers.Unfollow(p.Interactions, logg))
		r.Post("/blocks", controllers.Block(p.Interactions, logg))
		r.Delete("/blocks", controllers.Unblock(p.Interactions, logg))
		r.Post("/mutes", controllers.Mute(p.Interactions, logg))
		r.Delete("/mutes", controllers.Unmute(p.Interactions, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(p.Notifications, logg))
			r.Post("/seen", controllers.MarkNotificationsSeen(p.Notifications, logg))
		})

		r.Route("/outbox", func(r chi.Router) {
			r.Get("/", controllers.ListMutations(p.Session, p.Outbox, logg))
			r.Get("/pending", controllers.PendingMutations(p.Session, p.Outbox, logg))
			r.Get("/{mutationId}", controllers.GetMutation(p.Session, p.Outbox, logg))
			r.Post("/sweep", controllers.SweepOutbox(p.Session, p.Scheduler, logg))
		})
	})

	return r
}
