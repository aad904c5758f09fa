package model

// LogType is the structural type inferred for a whole file.
type LogType string

const (
	LogTransactional LogType = "transactional_log"
	LogStructuredApp LogType = "structured_app_log"
	LogAccess        LogType = "access_log"
	LogAudit         LogType = "audit"
	LogTrace         LogType = "trace"
	LogAlert         LogType = "alert"
	LogGeneric       LogType = "generic"
)

// TimeRange holds the earliest and latest timestamp seen, compared
// lexicographically in the scanner-native format. Both are empty until the
// first timestamp is observed.
type TimeRange struct {
	Start string `json:"start" yaml:"start" msgpack:"start"`
	End   string `json:"end" yaml:"end" msgpack:"end"`
}

// Observe widens the range to include ts.
func (r *TimeRange) Observe(ts string) {
	if ts == "" {
		return
	}
	if r.Start == "" || ts < r.Start {
		r.Start = ts
	}
	if r.End == "" || ts > r.End {
		r.End = ts
	}
}

// Empty reports whether no timestamp has been observed.
func (r TimeRange) Empty() bool { return r.Start == "" && r.End == "" }

// ValueCount is one entry of a frequency ranking.
type ValueCount struct {
	Value string `json:"value" yaml:"value" msgpack:"value"`
	Count int    `json:"count" yaml:"count" msgpack:"count"`
}

// EntityStats summarises all occurrences of one entity type.
type EntityStats struct {
	DistinctCount int          `json:"distinct_count" yaml:"distinct_count" msgpack:"distinct_count"`
	TotalCount    int          `json:"total_count" yaml:"total_count" msgpack:"total_count"`
	TopValues     []ValueCount `json:"top_values" yaml:"top_values" msgpack:"top_values"`
}

// KindSummary aggregates the operations of one kind.
type KindSummary struct {
	Count    int            `json:"count" yaml:"count" msgpack:"count"`
	Events   int            `json:"events" yaml:"events" msgpack:"events"` // marker lines
	Rows     int            `json:"rows" yaml:"rows" msgpack:"rows"`       // row images
	Targets  map[string]int `json:"targets" yaml:"targets" msgpack:"targets"`
	ActorIDs []string       `json:"actor_ids" yaml:"actor_ids" msgpack:"actor_ids"` // sorted, distinct
}

// Stats carries scanner tallies that are not entities, operations or alerts.
type Stats struct {
	AlertLevels      map[Severity]int `json:"alert_levels,omitempty" yaml:"alert_levels,omitempty" msgpack:"alert_levels,omitempty"`
	SensitiveOps     map[string]int   `json:"sensitive_ops,omitempty" yaml:"sensitive_ops,omitempty" msgpack:"sensitive_ops,omitempty"`
	Exceptions       map[string]int   `json:"exceptions,omitempty" yaml:"exceptions,omitempty" msgpack:"exceptions,omitempty"`
	DroppedRowEvents int              `json:"dropped_row_events" yaml:"dropped_row_events" msgpack:"dropped_row_events"`
	AlertsDropped    int              `json:"alerts_dropped" yaml:"alerts_dropped" msgpack:"alerts_dropped"`
	PatternTimeouts  int64            `json:"pattern_timeouts" yaml:"pattern_timeouts" msgpack:"pattern_timeouts"`
}

// AnalysisResult is the read-only snapshot handed to report writers.
type AnalysisResult struct {
	FilePath         string                     `json:"file_path" yaml:"file_path" msgpack:"file_path"`
	SizeBytes        int64                      `json:"size_bytes" yaml:"size_bytes" msgpack:"size_bytes"`
	DetectedType     LogType                    `json:"detected_type" yaml:"detected_type" msgpack:"detected_type"`
	TotalLines       int                        `json:"total_lines" yaml:"total_lines" msgpack:"total_lines"`
	TimeRange        TimeRange                  `json:"time_range" yaml:"time_range" msgpack:"time_range"`
	Entities         map[EntityType]EntityStats `json:"entities" yaml:"entities" msgpack:"entities"`
	OperationsByKind map[OpKind]KindSummary     `json:"operations_by_kind" yaml:"operations_by_kind" msgpack:"operations_by_kind"`
	Operations       []Operation                `json:"operations,omitempty" yaml:"operations,omitempty" msgpack:"operations,omitempty"`
	Alerts           []Alert                    `json:"alerts" yaml:"alerts" msgpack:"alerts"`
	Insights         []Insight                  `json:"insights" yaml:"insights" msgpack:"insights"`
	Stats            Stats                      `json:"stats" yaml:"stats" msgpack:"stats"`
}
