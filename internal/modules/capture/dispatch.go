// Package capture installs the agent's collection hooks: explicit and
// recovered error capture, HTTP transport interception, performance marks
// and the session lifecycle. Capture entry points never block and never
// panic into the host.
package capture

import (
	"context"

	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/modules/offline"
)

// Dispatcher hands finished events to the delivery pipeline. Implementations
// must return quickly; slow work happens behind the offline store.
type Dispatcher interface {
	DispatchError(ctx context.Context, ev *entity.ErrorEvent, priority offline.Priority)
	DispatchNetwork(ctx context.Context, evs []*entity.NetworkEvent)
	DispatchSession(ctx context.Context, evs []*entity.SessionEvent)
}

// NoopDispatcher drops everything.
type NoopDispatcher struct{}

func (NoopDispatcher) DispatchError(context.Context, *entity.ErrorEvent, offline.Priority) {}
func (NoopDispatcher) DispatchNetwork(context.Context, []*entity.NetworkEvent)             {}
func (NoopDispatcher) DispatchSession(context.Context, []*entity.SessionEvent)             {}
