package gateway

import (
	"net/http"

	"github.com/pr-poehali-dev/game-store-offline/internal/worker/cache"
)

// cacheStateHeader reports where the response came from: "hit", "stale",
// "miss" or "offline".
const cacheStateHeader = "X-Cache"

// Synthetic bodies for requests that cannot be answered from cache or origin.
const (
	offlineImageBody      = "Image not available offline"
	offlineAssetBody      = "Asset not available offline"
	offlineNavigationBody = "Offline - content not available"
)

// serveImage is TTL-gated cache-then-network. A cached image younger than
// ImageTTL is served as-is; a stale one is revalidated against the origin and
// only falls back to the stale copy when the origin is unreachable. An origin
// answer, even an error status, is relayed untouched.
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.URL.RequestURI()
	images := s.caches.Open(s.life.Names().Images())

	cached, err := images.Match(ctx, key)
	if err == nil && cached.Age(s.now()) < ImageTTL {
		s.writeEntry(w, cached, "hit")
		return
	}

	fetched, ferr := s.origin.Fetch(ctx, key)
	if ferr != nil {
		if cached != nil {
			s.writeEntry(w, cached, "stale")
			return
		}
		s.serveOffline(w, offlineImageBody)
		return
	}

	if fetched.Status == http.StatusOK {
		if err := images.Put(ctx, key, fetched); err != nil {
			s.log.Warn(ctx, "image cache write failed", "url", key, "error", err)
		} else if evicted, err := images.EnforceCap(ctx, ImageCacheCap); err != nil {
			s.log.Warn(ctx, "image cache eviction failed", "error", err)
		} else if evicted > 0 {
			s.log.Debug(ctx, "image cache trimmed", "evicted", evicted)
		}
	}
	s.writeEntry(w, fetched, "miss")
}

// serveAsset is cache-first: scripts and styles are immutable per worker
// version, so a cached copy never expires. The precache partition is
// consulted before the runtime one.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.URL.RequestURI()
	names := s.life.Names()

	for _, partition := range []string{names.Precache(), names.Runtime()} {
		if cached, err := s.caches.Open(partition).Match(ctx, key); err == nil {
			s.writeEntry(w, cached, "hit")
			return
		}
	}

	fetched, err := s.origin.Fetch(ctx, key)
	if err != nil {
		s.serveOffline(w, offlineAssetBody)
		return
	}
	if fetched.Status == http.StatusOK {
		if err := s.caches.Open(names.Runtime()).Put(ctx, key, fetched); err != nil {
			s.log.Warn(ctx, "asset cache write failed", "url", key, "error", err)
		}
	}
	s.writeEntry(w, fetched, "miss")
}

// serveNavigation is network-first: a live document always wins and refreshes
// the precache copy. Offline falls back through the exact cached document,
// then the cached root, then a synthetic offline answer.
func (s *Server) serveNavigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.URL.RequestURI()
	names := s.life.Names()

	fetched, err := s.origin.Fetch(ctx, key)
	if err == nil {
		if fetched.Status == http.StatusOK {
			if err := s.caches.Open(names.Precache()).Put(ctx, key, fetched); err != nil {
				s.log.Warn(ctx, "navigation cache write failed", "url", key, "error", err)
			}
		}
		s.writeEntry(w, fetched, "miss")
		return
	}

	for _, attempt := range []struct {
		partition string
		key       string
	}{
		{names.Precache(), key},
		{names.Runtime(), key},
		{names.Precache(), "/"},
		{names.Precache(), "/index.html"},
	} {
		if cached, err := s.caches.Open(attempt.partition).Match(ctx, attempt.key); err == nil {
			s.writeEntry(w, cached, "stale")
			return
		}
	}

	s.serveOffline(w, offlineNavigationBody)
}

// writeEntry replays a stored or freshly fetched response.
func (s *Server) writeEntry(w http.ResponseWriter, e *cache.Entry, state string) {
	h := w.Header()
	for k, vs := range e.Header {
		h[k] = vs
	}
	h.Set(cacheStateHeader, state)
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

// serveOffline answers when neither the origin nor any cache can, with the
// plain-text body of the strategy that gave up.
func (s *Server) serveOffline(w http.ResponseWriter, body string) {
	w.Header().Set(cacheStateHeader, "offline")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(body))
}
