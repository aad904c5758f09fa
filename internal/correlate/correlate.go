// Package correlate joins the facts produced by one scan across time and
// identity: it orders the operation timeline, groups operations by kind and
// ranks entity values.
package correlate

import (
	"slices"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/atikulmunna/sleuth/internal/scanner"
)

const (
	// DefaultTopK is the length of the IP activity ranking.
	DefaultTopK = 5
	// DefaultTopValues is how many values each entity type keeps in its summary.
	DefaultTopValues = 10
)

// Options tune ranking lengths. Zero values select the defaults.
type Options struct {
	TopK      int
	TopValues int
}

// Correlated is the cross-record view of one scan. It is built once and
// only read afterwards.
type Correlated struct {
	Type       model.LogType
	TotalLines int
	TimeRange  model.TimeRange

	// Operations is the timeline sorted by timestamp; equal timestamps keep
	// scan order.
	Operations []model.Operation
	ByKind     map[model.OpKind]model.KindSummary
	Alerts     []model.Alert

	TopIPs   []model.ValueCount
	Entities map[model.EntityType]model.EntityStats

	occurrences map[model.EntityType][]model.Entity
}

// Correlate builds the cross-record view of res. res is not modified.
func Correlate(res scanner.Result, opts Options) *Correlated {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopValues <= 0 {
		opts.TopValues = DefaultTopValues
	}

	ops := slices.Clone(res.Operations)
	slices.SortStableFunc(ops, func(a, b model.Operation) int {
		return strings.Compare(a.Timestamp, b.Timestamp)
	})

	c := &Correlated{
		Type:        res.Type,
		TotalLines:  res.State.TotalLines,
		TimeRange:   res.State.TimeRange,
		Operations:  ops,
		ByKind:      groupByKind(ops),
		Alerts:      res.Alerts,
		Entities:    make(map[model.EntityType]model.EntityStats),
		occurrences: make(map[model.EntityType][]model.Entity),
	}

	for _, e := range res.Entities {
		c.occurrences[e.Type] = append(c.occurrences[e.Type], e)
	}
	for typ, es := range c.occurrences {
		ranked := Rank(values(es), 0)
		top := ranked
		if len(top) > opts.TopValues {
			top = top[:opts.TopValues]
		}
		c.Entities[typ] = model.EntityStats{
			DistinctCount: len(ranked),
			TotalCount:    len(es),
			TopValues:     top,
		}
	}
	c.TopIPs = Rank(values(c.occurrences[model.EntityIP]), opts.TopK)

	return c
}

// Occurrences returns every entity of typ in scan order.
func (c *Correlated) Occurrences(typ model.EntityType) []model.Entity {
	return c.occurrences[typ]
}

// Distinct returns the distinct values of typ, sorted.
func (c *Correlated) Distinct(typ model.EntityType) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.occurrences[typ] {
		if !seen[e.Value] {
			seen[e.Value] = true
			out = append(out, e.Value)
		}
	}
	slices.Sort(out)
	return out
}

// TopTargets ranks the targets of kind by operation count, ties broken by
// first appearance in the timeline.
func (c *Correlated) TopTargets(kind model.OpKind, k int) []model.ValueCount {
	var targets []string
	for _, op := range c.Operations {
		if op.Kind == kind {
			targets = append(targets, op.Target)
		}
	}
	return Rank(targets, k)
}

// TopRowTargets ranks the targets of kind by row images, ties broken by
// first appearance in the timeline. Targets without row images are left out.
func (c *Correlated) TopRowTargets(kind model.OpKind, k int) []model.ValueCount {
	index := make(map[string]int)
	var out []model.ValueCount
	for _, op := range c.Operations {
		if op.Kind != kind || op.Rows == 0 {
			continue
		}
		i, ok := index[op.Target]
		if !ok {
			i = len(out)
			index[op.Target] = i
			out = append(out, model.ValueCount{Value: op.Target})
		}
		out[i].Count += op.Rows
	}
	return topK(out, k)
}

// Rank counts vs and orders them by count descending, ties broken by first
// appearance. k <= 0 returns every value.
func Rank(vs []string, k int) []model.ValueCount {
	if len(vs) == 0 {
		return nil
	}
	index := make(map[string]int)
	var out []model.ValueCount
	for _, v := range vs {
		i, ok := index[v]
		if !ok {
			i = len(out)
			index[v] = i
			out = append(out, model.ValueCount{Value: v})
		}
		out[i].Count++
	}
	return topK(out, k)
}

// topK sorts counts descending, keeping first-appearance order on ties.
func topK(out []model.ValueCount, k int) []model.ValueCount {
	slices.SortStableFunc(out, func(a, b model.ValueCount) int {
		return b.Count - a.Count
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func groupByKind(ops []model.Operation) map[model.OpKind]model.KindSummary {
	byKind := make(map[model.OpKind]model.KindSummary)
	actors := make(map[model.OpKind]map[string]bool)

	for _, op := range ops {
		s := byKind[op.Kind]
		if s.Targets == nil {
			s.Targets = make(map[string]int)
			actors[op.Kind] = make(map[string]bool)
		}
		s.Count++
		s.Events += op.Events
		s.Rows += op.Rows
		s.Targets[op.Target]++
		for _, e := range op.RelatedEntities {
			if e.Type == model.EntityThreadID {
				actors[op.Kind][e.Value] = true
			}
		}
		byKind[op.Kind] = s
	}

	for kind, s := range byKind {
		for id := range actors[kind] {
			s.ActorIDs = append(s.ActorIDs, id)
		}
		slices.Sort(s.ActorIDs)
		byKind[kind] = s
	}
	return byKind
}

func values(es []model.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Value
	}
	return out
}
