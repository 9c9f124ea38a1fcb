package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultLogLines = 500

// LogRing is a logrus hook keeping the most recent formatted entries in
// memory so /api/logs works while the daemon is detached from a terminal.
type LogRing struct {
	fmt log.Formatter

	mu      sync.Mutex
	max     int
	lines   []string
	dropped uint64
}

func NewLogRing(maxLines int) *LogRing {
	if maxLines <= 0 {
		maxLines = defaultLogLines
	}
	return &LogRing{
		fmt: &log.TextFormatter{FullTimestamp: true, DisableColors: true},
		max: maxLines,
	}
}

func (r *LogRing) Levels() []log.Level { return log.AllLevels }

func (r *LogRing) Fire(e *log.Entry) error {
	b, err := r.fmt.Format(e)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		r.lines = append(r.lines, line)
	}
	if over := len(r.lines) - r.max; over > 0 {
		r.lines = append([]string(nil), r.lines[over:]...)
		r.dropped += uint64(over)
	}
	return nil
}

// Tail returns up to n of the newest lines and how many were evicted so far.
func (r *LogRing) Tail(n int) (lines []string, dropped uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.lines) {
		n = len(r.lines)
	}
	return append([]string(nil), r.lines[len(r.lines)-n:]...), r.dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

func (r *LogRing) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tail := 200
	if s := strings.TrimSpace(req.URL.Query().Get("tail")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 5000 {
			http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
			return
		}
		tail = v
	}
	lines, dropped := r.Tail(tail)

	w.Header().Set("Cache-Control", "no-store")
	if strings.EqualFold(req.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if dropped > 0 {
			_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
		return
	}

	b, err := json.MarshalIndent(LogsResponse{
		NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
		Dropped: dropped,
		Lines:   lines,
	}, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
