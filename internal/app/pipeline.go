package app

import (
	"context"
	"encoding/json"

	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/modules/capture"
	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/modules/offline"
	"revi/agent-core/internal/modules/resilience"
	"revi/agent-core/internal/modules/transport"
)

// Pipeline connects the capture layer to the resilience coordinator and the
// ingestion client. It implements both capture.Dispatcher and
// offline.Submitter: fresh events flow through it on capture, queued items
// flow through it again on reconnect.
type Pipeline struct {
	coord  *resilience.Coordinator
	client *transport.Client
	log    logger.Logger

	// base is the agent-lifetime context; dispatches detach from the
	// caller's context so a host request ending cannot cancel delivery.
	base context.Context
}

var (
	_ capture.Dispatcher = (*Pipeline)(nil)
	_ offline.Submitter  = (*Pipeline)(nil)
)

func NewPipeline(base context.Context, coord *resilience.Coordinator, client *transport.Client, log logger.Logger) *Pipeline {
	return &Pipeline{
		coord:  coord,
		client: client,
		log:    log.WithField("component", "pipeline"),
		base:   base,
	}
}

// DispatchError ships one error event. The capture entry point returns
// immediately; delivery happens on a background goroutine.
func (p *Pipeline) DispatchError(ctx context.Context, ev *entity.ErrorEvent, priority offline.Priority) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.WithField("error_detail", err.Error()).Error("Failed to encode error event")
		return
	}

	go p.submit(resilience.Submission{
		Feature:  transport.EndpointError,
		Kind:     resilience.KindError,
		Priority: priority,
		Payload:  payload,
	})
}

// DispatchNetwork ships a buffered network-event batch.
func (p *Pipeline) DispatchNetwork(ctx context.Context, evs []*entity.NetworkEvent) {
	if len(evs) == 0 {
		return
	}
	payload, err := json.Marshal(evs)
	if err != nil {
		p.log.WithField("error_detail", err.Error()).Error("Failed to encode network batch")
		return
	}

	go p.submit(resilience.Submission{
		Feature:  transport.EndpointNetworkEvent,
		Kind:     resilience.KindNetwork,
		Priority: offline.PriorityLow,
		Payload:  payload,
	})
}

// DispatchSession ships session-scoped events (lifecycle, performance,
// replay chunks).
func (p *Pipeline) DispatchSession(ctx context.Context, evs []*entity.SessionEvent) {
	if len(evs) == 0 {
		return
	}
	payload, err := json.Marshal(evs)
	if err != nil {
		p.log.WithField("error_detail", err.Error()).Error("Failed to encode session batch")
		return
	}

	go p.submit(resilience.Submission{
		Feature:  transport.EndpointSessionEvent,
		Kind:     resilience.KindSession,
		Priority: offline.PriorityMedium,
		Payload:  payload,
	})
}

func (p *Pipeline) submit(sub resilience.Submission) {
	_, _ = p.coord.Submit(p.base, sub, func(ctx context.Context) ([]byte, error) {
		body := p.bodyFor(sub.Kind, []json.RawMessage{sub.Payload})
		resp, err := p.client.Post(ctx, sub.Feature, body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
}

// SubmitBatch delivers one kind-homogeneous batch from the offline store.
// The coordinator is told the items are store-owned so the sync manager
// keeps control of retries and removal.
func (p *Pipeline) SubmitBatch(ctx context.Context, kind string, items []*offline.Item) error {
	payloads := make([]json.RawMessage, len(items))
	for i, it := range items {
		payloads[i] = it.Payload
	}

	endpoint := endpointFor(kind)
	sub := resilience.Submission{
		Feature:    endpoint,
		Kind:       resilience.EventKind(kind),
		FromStore:  true,
		Idempotent: true,
		Payload:    mustMarshal(payloads),
	}

	_, err := p.coord.Submit(ctx, sub, func(ctx context.Context) ([]byte, error) {
		body := p.bodyFor(resilience.EventKind(kind), payloads)
		resp, postErr := p.client.Post(ctx, endpoint, body)
		if postErr != nil {
			return nil, postErr
		}
		return json.Marshal(resp)
	})
	return err
}

// bodyFor builds the wire body for one endpoint. Error batches flatten the
// raw events under "errors"; everything else compacts repeated fields into
// the shared dictionary.
func (p *Pipeline) bodyFor(kind resilience.EventKind, payloads []json.RawMessage) map[string]any {
	members := decodeMembers(payloads)

	if kind == resilience.KindError {
		return map[string]any{"errors": members}
	}

	batch := transport.Compact(members)
	body := map[string]any{"events": batch.Items}
	if len(batch.Common) > 0 {
		body["common"] = batch.Common
	}
	return body
}

// decodeMembers flattens payloads into event maps. A payload may be a
// single event or an already-batched array.
func decodeMembers(payloads []json.RawMessage) []map[string]any {
	out := make([]map[string]any, 0, len(payloads))
	for _, raw := range payloads {
		var one map[string]any
		if err := json.Unmarshal(raw, &one); err == nil {
			out = append(out, one)
			continue
		}
		var many []map[string]any
		if err := json.Unmarshal(raw, &many); err == nil {
			out = append(out, many...)
		}
	}
	return out
}

func endpointFor(kind string) string {
	switch resilience.EventKind(kind) {
	case resilience.KindError:
		return transport.EndpointError
	case resilience.KindNetwork:
		return transport.EndpointNetworkEvent
	default:
		return transport.EndpointSessionEvent
	}
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
