package model

// EntityType tags a typed token pulled out of a log line.
type EntityType string

const (
	EntityIP         EntityType = "ip"
	EntityIPPort     EntityType = "ip_port"
	EntityMAC        EntityType = "mac"
	EntityEmail      EntityType = "email"
	EntityURL        EntityType = "url"
	EntityUUID       EntityType = "uuid"
	EntityTraceID    EntityType = "trace_id"
	EntitySpanID     EntityType = "span_id"
	EntityRequestID  EntityType = "request_id"
	EntityUserID     EntityType = "user_id"
	EntityThreadID   EntityType = "thread_id"
	EntitySessionID  EntityType = "session_id"
	EntityAccessKey  EntityType = "ak"
	EntityBucket     EntityType = "bucket"
	EntityDatabase   EntityType = "database"
	EntityDurationMS EntityType = "duration_ms"
	EntityDurationS  EntityType = "duration_s"
	EntityErrorCode  EntityType = "error_code"
	EntityHTTPStatus EntityType = "http_status"

	// Emitted by the transactional-log scanner only.
	EntityServerID EntityType = "server_id"
	EntityGTID     EntityType = "gtid"
)

// Entity is a single occurrence of a typed token. Repeated values are kept
// so frequency statistics stay exact.
type Entity struct {
	Type       EntityType `json:"type" yaml:"type" msgpack:"type"`
	Value      string     `json:"value" yaml:"value" msgpack:"value"`
	LineNumber int        `json:"line_number" yaml:"line_number" msgpack:"line_number"`
	Context    string     `json:"context,omitempty" yaml:"context,omitempty" msgpack:"context,omitempty"`
}

// ContextRunes is the maximum length of Entity.Context.
const ContextRunes = 200

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
