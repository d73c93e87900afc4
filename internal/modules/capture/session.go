package capture

import (
	"context"
	"sync"
	"time"

	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/pkg/uid"
)

// Session owns the session id, user context and host environment snapshot
// shared by every capture component.
type Session struct {
	mu        sync.Mutex
	id        string
	startedAt int64
	user      *entity.UserContext
	userAgent string
	viewport  *entity.Viewport
	dispatch  Dispatcher
	now       func() time.Time
}

func NewSession(dispatch Dispatcher) *Session {
	s := &Session{
		dispatch: dispatch,
		now:      time.Now,
	}
	s.rotate()
	return s
}

func (s *Session) rotate() {
	s.id = uid.NewSessionID()
	s.startedAt = s.now().UnixMilli()
}

// ID returns the current session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetUser replaces the user context attached to subsequent events.
func (s *Session) SetUser(u *entity.UserContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// User returns the current user context, nil when unset.
func (s *Session) User() *entity.UserContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetEnvironment records the host's user agent and viewport, attached to
// every subsequent error event.
func (s *Session) SetEnvironment(userAgent string, vp *entity.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAgent = userAgent
	s.viewport = vp
}

// Environment returns the recorded user agent and a copy of the viewport.
func (s *Session) Environment() (string, *entity.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.viewport == nil {
		return s.userAgent, nil
	}
	vp := *s.viewport
	return s.userAgent, &vp
}

// Emit sends one session-scoped event through the pipeline.
func (s *Session) Emit(ctx context.Context, eventType string, data map[string]any) {
	ev := &entity.SessionEvent{
		SessionID: s.ID(),
		EventType: eventType,
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	}
	s.dispatch.DispatchSession(ctx, []*entity.SessionEvent{ev})
}

// End closes the current session and starts a fresh one. The closing event
// carries the session duration.
func (s *Session) End(ctx context.Context) {
	s.mu.Lock()
	endedID := s.id
	duration := s.now().UnixMilli() - s.startedAt
	s.rotate()
	s.mu.Unlock()

	s.dispatch.DispatchSession(ctx, []*entity.SessionEvent{{
		SessionID: endedID,
		EventType: "session_end",
		Data:      map[string]any{"duration_ms": duration},
		Timestamp: s.now().UnixMilli(),
	}})
}
