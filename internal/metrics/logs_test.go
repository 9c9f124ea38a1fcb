package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(ring *LogRing) *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	l.SetLevel(log.DebugLevel)
	l.AddHook(ring)
	return l
}

func TestLogRing_KeepsNewestLines(t *testing.T) {
	ring := NewLogRing(3)
	l := newTestLogger(ring)
	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		l.WithField("component", "test").Info(msg)
	}

	lines, dropped := ring.Tail(0)
	require.Len(t, lines, 3)
	assert.Equal(t, uint64(2), dropped)
	assert.Contains(t, lines[0], "msg=three")
	assert.Contains(t, lines[2], "msg=five")
	assert.Contains(t, lines[2], "component=test")

	lines, _ = ring.Tail(1)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "msg=five")
}

func TestLogRing_Handler(t *testing.T) {
	ring := NewLogRing(10)
	l := newTestLogger(ring)
	l.Debug("temp 52, 2 -> 3")
	l.Warn("hot")

	ts := httptest.NewServer(Handler(nil, nil, ring))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?tail=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out LogsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Lines, 1)
	assert.Contains(t, out.Lines[0], "level=warning")

	resp2, err := http.Get(ts.URL + "/api/logs?format=text")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(body), "\n"))
	assert.Contains(t, string(body), "temp 52, 2 -> 3")
}

func TestLogRing_HandlerRejectsBadTail(t *testing.T) {
	ts := httptest.NewServer(Handler(nil, nil, NewLogRing(0)))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?tail=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
