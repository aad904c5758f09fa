package model

import "strings"

// OpKind is the DML kind of a reconstructed operation.
type OpKind string

const (
	OpDelete OpKind = "DELETE"
	OpUpdate OpKind = "UPDATE"
	OpInsert OpKind = "INSERT"
)

// Severity is shared by alerts and insights.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank orders severities; lower is more severe.
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return len(Severities)
}

// SeverityFromLevel maps a log level keyword to an alert severity.
func SeverityFromLevel(level string) Severity {
	switch strings.ToUpper(level) {
	case "FATAL", "CRITICAL":
		return SeverityCritical
	case "ERROR":
		return SeverityHigh
	case "WARN", "WARNING":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Operation is a run of consecutive DML marker lines against one target.
type Operation struct {
	LineNumber      int      `json:"line_number" yaml:"line_number" msgpack:"line_number"`
	Timestamp       string   `json:"timestamp" yaml:"timestamp" msgpack:"timestamp"` // scanner-native
	Kind            OpKind   `json:"kind" yaml:"kind" msgpack:"kind"`
	Target          string   `json:"target" yaml:"target" msgpack:"target"` // db.table
	Detail          string   `json:"detail" yaml:"detail" msgpack:"detail"`
	Events          int      `json:"events" yaml:"events" msgpack:"events"` // marker lines coalesced, headers included
	Rows            int      `json:"rows" yaml:"rows" msgpack:"rows"`       // row images among Events
	RelatedEntities []Entity `json:"related_entities,omitempty" yaml:"related_entities,omitempty" msgpack:"related_entities,omitempty"`
}

// Alert is an exception or warning reconstructed from one or more lines.
type Alert struct {
	LineNumber      int      `json:"line_number" yaml:"line_number" msgpack:"line_number"`
	Timestamp       string   `json:"timestamp" yaml:"timestamp" msgpack:"timestamp"`
	Severity        Severity `json:"severity" yaml:"severity" msgpack:"severity"`
	Source          string   `json:"source" yaml:"source" msgpack:"source"`
	Message         string   `json:"message" yaml:"message" msgpack:"message"`
	StackTrace      []string `json:"stack_trace,omitempty" yaml:"stack_trace,omitempty" msgpack:"stack_trace,omitempty"`
	Context         []string `json:"context,omitempty" yaml:"context,omitempty" msgpack:"context,omitempty"`
	RelatedEntities []Entity `json:"related_entities,omitempty" yaml:"related_entities,omitempty" msgpack:"related_entities,omitempty"`
}
