package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestStub struct {
	srv *httptest.Server

	mu    sync.Mutex
	paths []string
}

func newIngestStub(t *testing.T) *ingestStub {
	t.Helper()

	s := &ingestStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			s.mu.Lock()
			s.paths = append(s.paths, r.URL.Path)
			s.mu.Unlock()
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "ids": []string{"sid"}})
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *ingestStub) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func testMonitor(t *testing.T, stub *ingestStub) *Monitor {
	t.Helper()

	m := Init(Options{
		ApiKey:     "test-key",
		ApiUrl:     stub.srv.URL,
		StorageDir: t.TempDir(),
	})
	t.Cleanup(m.Destroy)
	return m
}

func TestInitWithMissingKeyDisablesAgent(t *testing.T) {
	m := Init(Options{StorageDir: t.TempDir()})

	// Every public method is a no-op on a disabled monitor; none may raise.
	assert.NotPanics(t, func() {
		assert.Empty(t, m.CaptureException(errors.New("x")))
		assert.Empty(t, m.CaptureMessage("x"))
		m.AddBreadcrumb(Breadcrumb{Message: "b"})
		m.SetUserContext(UserContext{ID: "u"})
		m.Mark("m")
		assert.Zero(t, m.Measure("m", "a", "b"))
		assert.Zero(t, m.GetWebVitals())
		assert.Empty(t, m.GetSessionID())
		m.EndSession()
		m.SetOnline(true)
		m.SetVisible(true)
		assert.NoError(t, m.Flush(context.Background()))
		m.Destroy()
	})
}

func TestCaptureExceptionReturnsEventID(t *testing.T) {
	m := testMonitor(t, newIngestStub(t))

	id := m.CaptureException(errors.New("boom"), EventOptions{
		Level: LevelWarning,
		Tags:  map[string]string{"k": "v"},
	})

	assert.NotEmpty(t, id)
	assert.NotEmpty(t, m.GetSessionID())
}

func TestMarkAndMeasure(t *testing.T) {
	m := testMonitor(t, newIngestStub(t))

	m.Mark("start")
	time.Sleep(5 * time.Millisecond)
	m.Mark("end")

	assert.Greater(t, m.Measure("op", "start", "end"), 0.0)
	assert.Zero(t, m.Measure("op", "missing", "end"))
}

func TestWebVitalsRoundTrip(t *testing.T) {
	m := testMonitor(t, newIngestStub(t))

	m.RecordWebVitals(WebVitals{LCP: 1200, CLS: 0.02})
	m.RecordWebVitals(WebVitals{FID: 10})

	v := m.GetWebVitals()
	assert.Equal(t, 1200.0, v.LCP)
	assert.Equal(t, 10.0, v.FID)
	assert.Equal(t, 0.02, v.CLS)
}

func TestEndSessionRotates(t *testing.T) {
	m := testMonitor(t, newIngestStub(t))

	before := m.GetSessionID()
	m.EndSession()
	assert.NotEqual(t, before, m.GetSessionID())
}

func TestWrappedClientReportsNetworkEvents(t *testing.T) {
	stub := newIngestStub(t)
	m := testMonitor(t, stub)

	third := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer third.Close()

	client := m.HTTPClient()
	resp, err := client.Get(third.URL + "/users")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, m.Flush(context.Background()))

	assert.Eventually(t, func() bool {
		for _, p := range stub.received() {
			if p == "/api/capture/network-event" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "expected a network-event upload")
}

func TestMonitorOwnIngestionTrafficIsInvisible(t *testing.T) {
	stub := newIngestStub(t)
	m := testMonitor(t, stub)

	client := m.HTTPClient()
	resp, err := client.Post(stub.srv.URL+"/api/capture/error", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, m.Flush(context.Background()))
	time.Sleep(100 * time.Millisecond)

	for _, p := range stub.received() {
		assert.NotEqual(t, "/api/capture/network-event", p)
	}
}

func TestFlushEmptiesBacklog(t *testing.T) {
	stub := newIngestStub(t)
	m := testMonitor(t, stub)

	m.CaptureMessage("hello", EventOptions{Level: LevelInfo})

	require.NoError(t, m.Flush(context.Background()))
	assert.Eventually(t, func() bool {
		return len(stub.received()) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartReplayProducesSnapshot(t *testing.T) {
	m := Init(Options{
		ApiKey:     "test-key",
		ApiUrl:     newIngestStub(t).srv.URL,
		StorageDir: t.TempDir(),
		Replay: struct {
			Enabled       bool
			MaskAllInputs bool
			MaskAllText   bool
		}{Enabled: true},
	})
	t.Cleanup(m.Destroy)

	root := &Node{Type: 0, Tag: "html", Opacity: 1, Display: "block"}
	snap := m.StartReplay(Document{URL: "https://site.test", Root: root})

	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Root.ID)
	assert.NotNil(t, m.ReplayRecorder())
}
