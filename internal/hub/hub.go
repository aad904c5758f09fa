package hub

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atikulmunna/sleuth/internal/metrics"
	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	subscriberBuffer = 64
	defaultHistory   = 50
)

// Report is one analysis outcome as published to subscribers.
type Report struct {
	ID     string                `json:"id"`
	Path   string                `json:"path"`
	At     time.Time             `json:"at"`
	Result *model.AnalysisResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// NewReport wraps an analysis outcome in a Report with a fresh id.
func NewReport(path string, res *model.AnalysisResult, err error) Report {
	r := Report{ID: uuid.NewString(), Path: path, At: time.Now().UTC(), Result: res}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Hub receives reports and broadcasts them to all subscribers. It keeps the
// latest report per path for late joiners.
type Hub struct {
	input       <-chan Report
	mu          sync.RWMutex
	subscribers map[chan Report]struct{}
	latest      map[string]Report
	recent      []Report
	history     int
	dropped     atomic.Int64
	log         *zap.Logger
}

// New creates a Hub that reads reports from the input channel.
func New(input <-chan Report, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		input:       input,
		subscribers: make(map[chan Report]struct{}),
		latest:      make(map[string]Report),
		history:     defaultHistory,
		log:         logger,
	}
}

// Subscribe returns a buffered channel that will receive reports.
// Multiple consumers can subscribe; each gets a copy of every report.
func (h *Hub) Subscribe() <-chan Report {
	ch := make(chan Report, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		if ch == sub {
			delete(h.subscribers, ch)
			close(ch)
			return
		}
	}
}

// Dropped returns the total number of reports dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Latest returns the most recent report for path.
func (h *Hub) Latest(path string) (Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.latest[path]
	return r, ok
}

// Reports returns the latest report of every path, sorted by path.
func (h *Hub) Reports() []Report {
	h.mu.RLock()
	out := make([]Report, 0, len(h.latest))
	for _, r := range h.latest {
		out = append(out, r)
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b Report) int { return cmp.Compare(a.Path, b.Path) })
	return out
}

// SetHistory sets how many reports Recent keeps. Values below 1 are ignored.
func (h *Hub) SetHistory(n int) {
	if n < 1 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = n
	if len(h.recent) > n {
		h.recent = slices.Clone(h.recent[len(h.recent)-n:])
	}
}

// Recent returns the last published reports, oldest first.
func (h *Hub) Recent() []Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.recent)
}

// Start begins reading from the input channel and broadcasting.
// Blocks until the context is cancelled or the input channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(r)
		}
	}
}

// broadcast records r and sends it to all subscribers.
// If a subscriber's channel is full, the report is dropped for that subscriber.
func (h *Hub) broadcast(r Report) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[r.Path] = r
	h.recent = append(h.recent, r)
	if len(h.recent) > h.history {
		h.recent = h.recent[len(h.recent)-h.history:]
	}
	metrics.ReportsPublished.Inc()

	for ch := range h.subscribers {
		select {
		case ch <- r:
		default:
			total := h.dropped.Add(1)
			metrics.ReportsDropped.Inc()
			h.log.Warn("dropped report for slow consumer", zap.String("path", r.Path), zap.Int64("total_dropped", total))
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan Report]struct{})
}
