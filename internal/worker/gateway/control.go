package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/common"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
)

// maxMessageBytes bounds one control request body.
const maxMessageBytes = 1 << 20

// handleMessage accepts one page-to-worker command and executes it. Replies
// that carry data (the pending purchase snapshot) come back in the response
// body using the same wire encoding as the event stream.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	m, err := messages.Decode(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, common.ErrUnknownMessage) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	switch cmd := m.(type) {
	case *messages.SkipWaiting:
		s.life.SkipWaiting()
		s.writeOK(w, http.StatusAccepted)

	case *messages.ClearCache:
		if err := s.life.ClearAll(ctx); err != nil {
			s.serverError(w, r, err)
			return
		}
		s.writeOK(w, http.StatusOK)

	case *messages.GetPendingPurchases:
		pending, err := s.queue.List(ctx)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.writeMessage(w, &messages.UpdatePendingPurchases{Purchases: pending})

	case *messages.QueuePurchase:
		if cmd.Purchase.ID == "" {
			http.Error(w, "purchase id required", http.StatusBadRequest)
			return
		}
		if err := s.queue.Enqueue(ctx, cmd.Purchase); err != nil {
			s.serverError(w, r, err)
			return
		}
		s.log.Info(ctx, "purchase queued", "id", cmd.Purchase.ID, "game", cmd.Purchase.GameName)
		s.writeOK(w, http.StatusAccepted)

	case *messages.RequestSync:
		if cmd.Tag == "" {
			http.Error(w, "sync tag required", http.StatusBadRequest)
			return
		}
		// The pass outlives this request, like a sync event outlives the
		// message that requested it.
		s.dispatcher.Go(context.WithoutCancel(ctx), cmd.Tag)
		s.writeOK(w, http.StatusAccepted)

	case *messages.RegisterPeriodicSync:
		interval := time.Duration(cmd.MinIntervalMS) * time.Millisecond
		if err := s.sched.Register(ctx, cmd.Tag, interval); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeOK(w, http.StatusCreated)

	case *messages.UnregisterPeriodicSync:
		if err := s.sched.Unregister(ctx, cmd.Tag); err != nil {
			s.serverError(w, r, err)
			return
		}
		s.writeOK(w, http.StatusOK)

	default:
		http.Error(w, fmt.Sprintf("%s is not a command", m.Type()), http.StatusBadRequest)
	}
}

// handleEvents is the worker-to-page stream. Each connected page holds one
// SSE response; broadcasts fan out to all of them.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := s.registry.Connect()
	defer s.registry.Disconnect(c)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected %s\n\n", c.ID())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, open := <-c.Events():
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// statusResponse is the capability probe answered by GET /worker/status.
type statusResponse struct {
	Version          string   `json:"version"`
	State            string   `json:"state"`
	Clients          int      `json:"clients"`
	PendingPurchases int      `json:"pending_purchases"`
	PeriodicSyncTags []string `json:"periodic_sync_tags"`
	Caches           []string `json:"caches"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := s.queue.Count(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	tags, err := s.sched.Tags(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	names, err := s.caches.Names(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		Version:          s.life.Version(),
		State:            s.life.State().String(),
		Clients:          s.registry.Count(),
		PendingPurchases: pending,
		PeriodicSyncTags: tags,
		Caches:           names,
	})
}

// handlePush is the push ingress: the raw body is decoded into a notification
// (malformed payloads degrade instead of failing), shown, and relayed to
// connected pages.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	n := notify.DecodePayload(body)
	if err := s.notifier.Show(ctx, n); err != nil {
		s.log.Warn(ctx, "showing notification failed", "error", err)
	}
	s.registry.Broadcast(ctx, &messages.Notification{Notification: n})

	s.writeOK(w, http.StatusAccepted)
}

// clickRequest reports which notification was acted on and which action
// button, if any, was used.
type clickRequest struct {
	Action       string              `json:"action"`
	Notification notify.Notification `json:"notification"`
}

// handleNotificationClick resolves the click target and steers the
// longest-connected page there. With no page connected the caller learns the
// URL so it can open one itself.
func (s *Server) handleNotificationClick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var click clickRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageBytes)).Decode(&click); err != nil {
		http.Error(w, "decoding click", http.StatusBadRequest)
		return
	}

	target := click.Notification.TargetURL(click.Action)
	focused := true
	if err := s.registry.SendFirst(ctx, &messages.Navigate{URL: target}); err != nil {
		if !errors.Is(err, common.ErrNoClients) {
			s.serverError(w, r, err)
			return
		}
		focused = false
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"url":     target,
		"focused": focused,
	})
}

func (s *Server) writeOK(w http.ResponseWriter, status int) {
	s.writeJSON(w, status, map[string]bool{"ok": true})
}

func (s *Server) writeMessage(w http.ResponseWriter, m messages.Message) {
	data, err := messages.Encode(m)
	if err != nil {
		http.Error(w, "encoding reply", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(context.Background(), "encoding response", "error", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
