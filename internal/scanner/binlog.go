package scanner

import (
	"regexp"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
)

var (
	binlogTime     = regexp.MustCompile(`#(\d{6} \d{2}:\d{2}:\d{2})`)
	binlogServerID = regexp.MustCompile(`server id (\d+)`)
	binlogThreadID = regexp.MustCompile(`thread_id=(\d+)`)
	binlogGTID     = regexp.MustCompile(`GTID_NEXT=\s*'([^']+)'`)
	binlogTableMap = regexp.MustCompile("Table_map:\\s*`(\\w+)`\\.`(\\w+)`\\s*mapped to number (\\d+)")
	binlogRowEvent = regexp.MustCompile(`(Delete_rows|Update_rows|Write_rows):\s*table id (\d+)`)

	// Row images printed by mysqlbinlog -v name their table inline.
	binlogRowImages = []struct {
		kind    model.OpKind
		pattern *regexp.Regexp
	}{
		{model.OpDelete, regexp.MustCompile("###\\s*DELETE FROM\\s*`(\\w+)`\\.`(\\w+)`")},
		{model.OpUpdate, regexp.MustCompile("###\\s*UPDATE\\s*`(\\w+)`\\.`(\\w+)`")},
		{model.OpInsert, regexp.MustCompile("###\\s*INSERT INTO\\s*`(\\w+)`\\.`(\\w+)`")},
	}

	rowEventKinds = map[string]model.OpKind{
		"Delete_rows": model.OpDelete,
		"Update_rows": model.OpUpdate,
		"Write_rows":  model.OpInsert,
	}
)

// binlogScanner reconstructs DML operations from mysqlbinlog text output.
// Time, server id and thread id are session-scoped: once seen they apply
// to every following line until overwritten.
type binlogScanner struct {
	base
	open *model.Operation
	ops  []model.Operation
}

func newBinlogScanner(b base) *binlogScanner {
	b.state.TableMap = make(map[string]TableRef)
	return &binlogScanner{base: b}
}

func (s *binlogScanner) FeedLine(n int, line string) {
	s.begin()
	entities := s.ex.Extract(line, n)
	ctx := model.Truncate(line, model.ContextRunes)

	if m := binlogTime.FindStringSubmatch(line); m != nil {
		s.state.CurrentTime = m[1]
		s.state.TimeRange.Observe(m[1])
	}
	if m := binlogServerID.FindStringSubmatch(line); m != nil {
		s.state.CurrentServerID = m[1]
		entities = ensureEntity(entities, model.Entity{Type: model.EntityServerID, Value: m[1], LineNumber: n, Context: ctx})
	}
	if m := binlogThreadID.FindStringSubmatch(line); m != nil {
		s.state.CurrentThreadID = m[1]
		entities = ensureEntity(entities, model.Entity{Type: model.EntityThreadID, Value: m[1], LineNumber: n, Context: ctx})
	}
	if m := binlogGTID.FindStringSubmatch(line); m != nil {
		entities = ensureEntity(entities, model.Entity{Type: model.EntityGTID, Value: m[1], LineNumber: n, Context: ctx})
	}
	if m := binlogTableMap.FindStringSubmatch(line); m != nil {
		ref := TableRef{Database: m[1], Table: m[2]}
		s.state.TableMap[m[3]] = ref
		entities = ensureEntity(entities, model.Entity{Type: model.EntityDatabase, Value: ref.Name(), LineNumber: n, Context: ctx})
	}

	if kind, target, image, ok := s.marker(line); ok {
		s.mark(n, line, kind, target, image)
	}

	s.addEntities(entities)
}

// marker reports whether line is a DML marker, which target it hits and
// whether it is a row image (one changed row) rather than an event header.
// Row events whose table id was not registered earlier in this pass are
// dropped.
func (s *binlogScanner) marker(line string) (kind model.OpKind, target string, image, ok bool) {
	for _, ri := range binlogRowImages {
		if m := ri.pattern.FindStringSubmatch(line); m != nil {
			return ri.kind, m[1] + "." + m[2], true, true
		}
	}
	if m := binlogRowEvent.FindStringSubmatch(line); m != nil {
		ref, found := s.state.TableMap[m[2]]
		if !found {
			s.state.DroppedRowEvents++
			return "", "", false, false
		}
		return rowEventKinds[m[1]], ref.Name(), false, true
	}
	return "", "", false, false
}

// mark extends the open operation when the target is unchanged, otherwise
// flushes it and opens a new one.
func (s *binlogScanner) mark(n int, line string, kind model.OpKind, target string, image bool) {
	if s.open != nil && s.open.Target == target {
		s.open.Events++
		if image {
			s.open.Rows++
		}
		return
	}
	s.flush()

	op := &model.Operation{
		LineNumber: n,
		Timestamp:  s.state.CurrentTime,
		Kind:       kind,
		Target:     target,
		Detail:     model.Truncate(strings.TrimSpace(line), model.ContextRunes),
		Events:     1,
	}
	if image {
		op.Rows = 1
	}
	if s.state.CurrentThreadID != "" {
		op.RelatedEntities = append(op.RelatedEntities, model.Entity{Type: model.EntityThreadID, Value: s.state.CurrentThreadID, LineNumber: n})
	}
	if s.state.CurrentServerID != "" {
		op.RelatedEntities = append(op.RelatedEntities, model.Entity{Type: model.EntityServerID, Value: s.state.CurrentServerID, LineNumber: n})
	}
	s.open = op
}

func (s *binlogScanner) flush() {
	if s.open == nil {
		return
	}
	s.ops = append(s.ops, *s.open)
	s.open = nil
}

func (s *binlogScanner) Finalize() Result {
	s.flush()
	return s.result(s.ops)
}
