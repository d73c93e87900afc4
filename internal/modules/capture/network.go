package capture

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"time"

	"revi/agent-core/internal/infrastructure/telemetry/tracer"
	"revi/agent-core/internal/modules/breadcrumb"
	"revi/agent-core/internal/modules/capture/entity"
	"revi/agent-core/internal/pkg/utils"
)

// bodyCaptureLimit bounds how much of an allow-listed body is recorded.
const bodyCaptureLimit = 4 << 10

// defaultBodyAllowList matches the URL families whose bodies are captured.
var defaultBodyAllowList = []*regexp.Regexp{
	regexp.MustCompile(`/api/`),
	regexp.MustCompile(`/graphql`),
}

// Transport wraps an http.RoundTripper: admitted requests get trace headers
// injected and produce a NetworkEvent; everything else passes through
// untouched.
type Transport struct {
	next      http.RoundTripper
	filter    *AdmissionFilter
	tracer    tracer.Tracer
	crumbs    *breadcrumb.Ring
	buffer    *NetworkBuffer
	bodyAllow []*regexp.Regexp
	maskCards bool
	now       func() time.Time
}

// NewTransport builds the capture wrapper. next defaults to
// http.DefaultTransport.
func NewTransport(
	next http.RoundTripper,
	filter *AdmissionFilter,
	trc tracer.Tracer,
	crumbs *breadcrumb.Ring,
	buffer *NetworkBuffer,
	bodyAllow []string,
	maskCards bool,
) *Transport {
	allow := compileAll(bodyAllow)
	if len(allow) == 0 {
		allow = defaultBodyAllowList
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{
		next:      next,
		filter:    filter,
		tracer:    trc,
		crumbs:    crumbs,
		buffer:    buffer,
		bodyAllow: allow,
		maskCards: maskCards,
		now:       time.Now,
	}
}

var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements http.RoundTripper. Capture failures never fail the
// host's request: on any internal problem the wrapped transport's response
// is returned as-is.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	if !t.filter.Admit(url) {
		return t.next.RoundTrip(req)
	}

	ctx := tracer.WithGeneratedTrace(req.Context())
	span, ctx := t.tracer.StartSpan(ctx, "http.client "+req.Method)
	span.SetTag("http.method", req.Method)
	span.SetTag("http.url", url)
	defer span.Finish()

	req = req.Clone(ctx)
	t.tracer.Inject(ctx, req.Header)

	ev := &entity.NetworkEvent{
		Method:         req.Method,
		URL:            url,
		StartedAt:      t.now().UnixMilli(),
		RequestHeaders: utils.MaskHTTPHeaders(req.Header),
	}
	if traceID, spanID, ok := t.tracer.ExtractTraceInfo(ctx); ok {
		ev.TraceID = traceID
		ev.SpanID = spanID
	} else {
		ev.TraceID = req.Header.Get(tracer.HeaderTraceparent)
		ev.ParentSpanID = req.Header.Get(tracer.HeaderParentSpan)
	}

	captureBody := t.bodyAllowed(url)
	if req.Body != nil {
		ev.RequestSize = req.ContentLength
		if captureBody {
			body, rest, err := peekBody(req.Body)
			if err == nil {
				req.Body = rest
				ev.RequestBody = t.maskBody(body)
			}
		}
	}

	start := t.now()
	resp, err := t.next.RoundTrip(req)
	ev.DurationMs = t.now().Sub(start).Milliseconds()

	if err != nil {
		// Transport failure: status stays 0.
		t.emit(req, ev)
		return resp, err
	}

	ev.Status = resp.StatusCode
	ev.ResponseSize = resp.ContentLength
	ev.ResponseHeaders = utils.MaskHTTPHeaders(resp.Header)
	if serverTrace := resp.Header.Get("X-Trace-Id"); serverTrace != "" {
		ev.TraceID = serverTrace
	}
	if captureBody && resp.Body != nil {
		body, rest, peekErr := peekBody(resp.Body)
		if peekErr == nil {
			resp.Body = rest
			ev.ResponseBody = t.maskBody(body)
			if ev.ResponseSize < 0 {
				ev.ResponseSize = int64(len(body))
			}
		}
	}

	t.emit(req, ev)
	return resp, nil
}

func (t *Transport) emit(req *http.Request, ev *entity.NetworkEvent) {
	t.crumbs.Push(breadcrumb.Breadcrumb{
		Timestamp: ev.StartedAt,
		Category:  breadcrumb.CategoryNetwork,
		Level:     "info",
		Message:   ev.Method + " " + ev.URL,
		Data: map[string]any{
			"status":      ev.Status,
			"duration_ms": ev.DurationMs,
		},
	})
	t.buffer.Push(req.Context(), ev)
}

func (t *Transport) bodyAllowed(url string) bool {
	for _, re := range t.bodyAllow {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

func (t *Transport) maskBody(body []byte) string {
	s := string(body)
	if masked, ok := utils.MaskSensitive(s).(string); ok {
		s = masked
	}
	if t.maskCards {
		s = utils.MaskCreditCards(s)
	}
	return s
}

// peekBody reads up to the capture limit and returns a reader that replays
// the full stream.
func peekBody(rc io.ReadCloser) ([]byte, io.ReadCloser, error) {
	head := make([]byte, bodyCaptureLimit)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, rc, err
	}
	head = head[:n]

	rest := struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), rc), rc}
	return head, rest, nil
}
