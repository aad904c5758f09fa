package model

// Category groups insights by the question they answer.
type Category string

const (
	CategorySecurity Category = "security"
	CategoryAudit    Category = "audit"
	CategoryError    Category = "error"
	CategoryAnomaly  Category = "anomaly"
)

// Insight is a derived finding. It is a pure function of aggregate scan
// statistics and is never fed back into scan state.
type Insight struct {
	Category       Category `json:"category" yaml:"category" msgpack:"category"`
	Severity       Severity `json:"severity" yaml:"severity" msgpack:"severity"`
	Title          string   `json:"title" yaml:"title" msgpack:"title"`
	Description    string   `json:"description" yaml:"description" msgpack:"description"`
	Evidence       []string `json:"evidence" yaml:"evidence" msgpack:"evidence"`
	Recommendation string   `json:"recommendation" yaml:"recommendation" msgpack:"recommendation"`
}
