package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atikulmunna/sleuth/internal/hub"
	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHub runs a hub for the duration of the test and returns its input.
func startHub(t *testing.T) (*hub.Hub, chan<- hub.Report) {
	t.Helper()
	input := make(chan hub.Report, 16)
	h := hub.New(input, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Start(ctx)
	return h, input
}

func publish(t *testing.T, h *hub.Hub, input chan<- hub.Report, path string) {
	t.Helper()
	res := &model.AnalysisResult{FilePath: path, DetectedType: model.LogGeneric, TotalLines: 7}
	input <- hub.NewReport(path, res, nil)
	require.Eventually(t, func() bool {
		_, ok := h.Latest(path)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealthz(t *testing.T) {
	h, _ := startHub(t)
	s := New(h, Options{Files: func() []string { return []string{"a.log", "b.log"} }}, nil)

	w := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["files_watched"])
	assert.EqualValues(t, 0, body["dropped_reports"])
}

func TestReports(t *testing.T) {
	h, input := startHub(t)
	s := New(h, Options{}, nil)

	publish(t, h, input, "b.log")
	publish(t, h, input, "a.log")

	w := get(t, s, "/api/reports")
	require.Equal(t, http.StatusOK, w.Code)

	var reports []hub.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "a.log", reports[0].Path)
	assert.Equal(t, 7, reports[0].Result.TotalLines)

	w = get(t, s, "/api/reports/recent")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "b.log", reports[0].Path)
}

func TestLatest(t *testing.T) {
	h, input := startHub(t)
	s := New(h, Options{}, nil)
	publish(t, h, input, "/var/log/app.log")

	w := get(t, s, "/api/reports/latest?path=/var/log/app.log")
	require.Equal(t, http.StatusOK, w.Code)
	var r hub.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "/var/log/app.log", r.Path)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/reports/latest?path=/nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/reports/latest").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, input := startHub(t)
	s := New(h, Options{}, nil)
	publish(t, h, input, "a.log")

	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sleuth_reports_published_total")
}

func TestPprofOnlyWhenEnabled(t *testing.T) {
	h, _ := startHub(t)

	assert.Equal(t, http.StatusNotFound, get(t, New(h, Options{}, nil), "/debug/pprof/").Code)
	assert.Equal(t, http.StatusOK, get(t, New(h, Options{Pprof: true}, nil), "/debug/pprof/").Code)
}

func TestWebSocketReplaysAndStreams(t *testing.T) {
	h, input := startHub(t)
	s := New(h, Options{}, nil)
	publish(t, h, input, "a.log")

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first hub.Report
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "a.log", first.Path)

	input <- hub.NewReport("b.log", nil, nil)

	// b.log may arrive through the replay or the stream, possibly both.
	for {
		var r hub.Report
		require.NoError(t, conn.ReadJSON(&r))
		if r.Path == "b.log" {
			break
		}
	}
}
