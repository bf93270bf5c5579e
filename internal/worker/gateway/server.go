// Package gateway is the worker's HTTP surface: an offline-capable caching
// gateway in front of the application origin plus the control API pages use
// to talk to the worker (commands, the event stream, push ingress).
package gateway

import (
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/cache"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/clients"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/lifecycle"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/purchases"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/scheduler"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/syncd"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/upstream"
)

// Image cache policy: entries older than the TTL must be revalidated against
// the origin, and the partition never holds more than the cap.
const (
	ImageTTL      = 7 * 24 * time.Hour
	ImageCacheCap = 50
)

// Server wires the fetch strategies and the control API into one router.
type Server struct {
	origin     *upstream.Client
	caches     *cache.Manager
	life       *lifecycle.Controller
	registry   *clients.Registry
	dispatcher *syncd.Dispatcher
	sched      *scheduler.Scheduler
	queue      purchases.Repository
	notifier   notify.Notifier
	proxy      *httputil.ReverseProxy
	log        logging.Logger

	now func() time.Time
}

func NewServer(
	origin *upstream.Client,
	caches *cache.Manager,
	life *lifecycle.Controller,
	registry *clients.Registry,
	dispatcher *syncd.Dispatcher,
	sched *scheduler.Scheduler,
	queue purchases.Repository,
	notifier notify.Notifier,
	log logging.Logger,
) *Server {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Server{
		origin:     origin,
		caches:     caches,
		life:       life,
		registry:   registry,
		dispatcher: dispatcher,
		sched:      sched,
		queue:      queue,
		notifier:   notifier,
		proxy:      httputil.NewSingleHostReverseProxy(origin.Base()),
		log:        log.With("module", "gateway"),
		now:        time.Now,
	}
}

// Router builds the HTTP routing table. The control API owns /worker;
// everything else is fetch-intercepted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/worker", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Get("/events", s.handleEvents)
		r.Get("/status", s.handleStatus)
		r.Post("/push", s.handlePush)
		r.Post("/notification-click", s.handleNotificationClick)
	})

	r.Handle("/*", http.HandlerFunc(s.handleFetch))
	return r
}

// handleFetch dispatches one intercepted request to its strategy.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	switch classify(r) {
	case kindImage:
		s.serveImage(w, r)
	case kindAsset:
		s.serveAsset(w, r)
	case kindNavigation:
		s.serveNavigation(w, r)
	default:
		s.proxy.ServeHTTP(w, r)
	}
}
