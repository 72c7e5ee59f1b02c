package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wicara-ai/wicara/pkg/logging"
)

// Registry tracks live sessions by stream id. One session per stream;
// duplicate creation is an error, destruction is idempotent.
type Registry struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	draining bool
	empty    chan struct{}
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      logging.NewComponentLogger(log, "registry"),
		sessions: make(map[string]*Session),
	}
}

// Add registers a session under its stream id.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return ErrDraining
	}
	if _, ok := r.sessions[s.StreamID()]; ok {
		return ErrDuplicateSession
	}
	r.sessions[s.StreamID()] = s
	r.log.Debug("session_registered",
		slog.String("stream_id", s.StreamID()),
		slog.Int("active", len(r.sessions)))
	return nil
}

// Get returns the session for a stream id.
func (r *Registry) Get(streamID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[streamID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove unregisters and closes a session. Removing an unknown stream
// is a no-op so teardown paths can race.
func (r *Registry) Remove(streamID, reason string) {
	r.mu.Lock()
	s, ok := r.sessions[streamID]
	if ok {
		delete(r.sessions, streamID)
		if len(r.sessions) == 0 && r.empty != nil {
			close(r.empty)
			r.empty = nil
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.Close(reason)
	r.log.Debug("session_removed", slog.String("stream_id", streamID))
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Drain rejects new sessions and closes the existing ones.
func (r *Registry) Drain(reason string) {
	r.mu.Lock()
	r.draining = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Remove(id, reason)
	}
}

// WaitForEmpty blocks until every session has been removed or the
// context expires.
func (r *Registry) WaitForEmpty(ctx context.Context) error {
	r.mu.Lock()
	if len(r.sessions) == 0 {
		r.mu.Unlock()
		return nil
	}
	if r.empty == nil {
		r.empty = make(chan struct{})
	}
	ch := r.empty
	r.mu.Unlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			return nil
		case <-ticker.C:
			if r.Len() == 0 {
				return nil
			}
		}
	}
}
