package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Renderer writes an AnalysisResult to an output stream.
type Renderer interface {
	Render(res *model.AnalysisResult) error
}

// Formats lists the accepted --output values; the first is the default.
var Formats = []string{"table", "json", "yaml", "msgpack", "markdown"}

// New returns the renderer for format, writing to w.
func New(format string, w io.Writer) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "table", "text":
		return NewTableRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	case "yaml", "yml":
		return NewYAMLRenderer(w), nil
	case "msgpack":
		return NewMsgpackRenderer(w), nil
	case "markdown", "md":
		return NewMarkdownRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer writes one indented JSON document per result. Map keys are
// sorted, so equal results render to identical bytes.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONRenderer{enc: enc}
}

func (r *JSONRenderer) Render(res *model.AnalysisResult) error {
	return r.enc.Encode(res)
}

// ---------------------------------------------------------------------------
// YAML Renderer
// ---------------------------------------------------------------------------

// YAMLRenderer writes one YAML document per result.
type YAMLRenderer struct {
	w io.Writer
}

// NewYAMLRenderer returns a Renderer that writes YAML to w.
func NewYAMLRenderer(w io.Writer) *YAMLRenderer {
	return &YAMLRenderer{w: w}
}

func (r *YAMLRenderer) Render(res *model.AnalysisResult) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}

// ---------------------------------------------------------------------------
// Msgpack Renderer (compact binary output)
// ---------------------------------------------------------------------------

// MsgpackRenderer writes results as msgpack with sorted map keys.
type MsgpackRenderer struct {
	enc *msgpack.Encoder
}

// NewMsgpackRenderer returns a Renderer that writes msgpack to w.
func NewMsgpackRenderer(w io.Writer) *MsgpackRenderer {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return &MsgpackRenderer{enc: enc}
}

func (r *MsgpackRenderer) Render(res *model.AnalysisResult) error {
	return r.enc.Encode(res)
}
