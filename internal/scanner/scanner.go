// Package scanner implements the per-format streaming state machines that
// turn raw lines into entities, operations and alerts.
package scanner

import (
	"context"
	"fmt"

	"github.com/atikulmunna/sleuth/internal/extract"
	"github.com/atikulmunna/sleuth/internal/model"
)

// DefaultContextWindow is the number of preceding lines attached to an alert.
const DefaultContextWindow = 5

const ctxCheckEvery = 4096

// Scanner consumes one file line by line. FeedLine must be called with
// strictly increasing line numbers; Finalize flushes any open record and
// may be called once.
type Scanner interface {
	FeedLine(number int, line string)
	Finalize() Result
}

// TableRef is the (database, table) pair a binlog table id is bound to.
type TableRef struct {
	Database string
	Table    string
}

// Name returns "db.table".
func (t TableRef) Name() string { return t.Database + "." + t.Table }

// State is owned by exactly one scanner for the duration of one pass.
type State struct {
	TotalLines int
	TimeRange  model.TimeRange

	// Transactional-log session context. Table ids are only meaningful
	// within the pass that registered them.
	TableMap        map[string]TableRef
	CurrentTime     string
	CurrentThreadID string
	CurrentServerID string

	AlertLevels      map[model.Severity]int
	SensitiveOps     map[string]int
	Exceptions       map[string]int
	DroppedRowEvents int
	AlertsDropped    int
}

// Result is everything a scanner produced in one pass.
type Result struct {
	Type       model.LogType
	Entities   []model.Entity
	Operations []model.Operation
	Alerts     []model.Alert
	State      State
}

// Options tune the scanners. Zero values select defaults, except MaxAlerts
// where zero means unlimited.
type Options struct {
	ContextWindow int
	MaxAlerts     int
}

// New returns the scanner for a detected log type. Types without a
// dedicated grammar use the generic scanner.
func New(typ model.LogType, ex *extract.Extractor, opts Options) Scanner {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	b := base{typ: typ, ex: ex, opts: opts}

	switch typ {
	case model.LogTransactional:
		return newBinlogScanner(b)
	case model.LogStructuredApp:
		return newAppLogScanner(b)
	default:
		return newGenericScanner(b)
	}
}

// LineSource is a forward-only line iterator such as *source.Reader.
type LineSource interface {
	Next() bool
	Text() string
	Number() int
	Err() error
}

// RunOptions configure progress reporting for Run.
type RunOptions struct {
	ProgressEvery int
	Progress      func(lines int)
}

// Run feeds every line of src to sc exactly once and finalizes it. The
// context is checked periodically; on cancellation no partial result is
// returned.
func Run(ctx context.Context, sc Scanner, src LineSource, opts RunOptions) (Result, error) {
	for src.Next() {
		n := src.Number()
		sc.FeedLine(n, src.Text())

		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		if opts.Progress != nil && opts.ProgressEvery > 0 && n%opts.ProgressEvery == 0 {
			opts.Progress(n)
		}
	}
	if err := src.Err(); err != nil {
		return Result{}, fmt.Errorf("read line: %w", err)
	}
	return sc.Finalize(), nil
}

// base holds what every scanner shares: running totals and accumulated
// entities and alerts.
type base struct {
	typ      model.LogType
	ex       *extract.Extractor
	opts     Options
	state    State
	entities []model.Entity
	alerts   []model.Alert
}

func (b *base) begin() {
	b.state.TotalLines++
}

func (b *base) addEntities(es []model.Entity) {
	b.entities = append(b.entities, es...)
}

func (b *base) addAlert(a model.Alert) {
	if b.opts.MaxAlerts > 0 && len(b.alerts) >= b.opts.MaxAlerts {
		b.state.AlertsDropped++
		return
	}
	b.alerts = append(b.alerts, a)
}

func (b *base) result(ops []model.Operation) Result {
	return Result{
		Type:       b.typ,
		Entities:   b.entities,
		Operations: ops,
		Alerts:     b.alerts,
		State:      b.state,
	}
}

// ensureEntity appends e unless an entity with the same type and value was
// already extracted from the line.
func ensureEntity(es []model.Entity, e model.Entity) []model.Entity {
	for _, x := range es {
		if x.Type == e.Type && x.Value == e.Value {
			return es
		}
	}
	return append(es, e)
}

func incr[K comparable](m *map[K]int, k K) {
	if *m == nil {
		*m = make(map[K]int)
	}
	(*m)[k]++
}
