package tool

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/zero-day-ai/taskforge/argument"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/toolerr"
)

// Reserved placeholder names in the tool-level template.
const (
	PlaceholderIntensity = "intensity"
	PlaceholderOutput    = "output"
)

// OutputToken is left in planned arguments for the invoker to replace with
// the report path of the execution.
const OutputToken = "{" + PlaceholderOutput + "}"

// Stage is the assessment phase a tool belongs to.
type Stage string

const (
	StageOSINT           Stage = "osint"
	StageEnumeration     Stage = "enumeration"
	StageVulnerabilities Stage = "vulnerabilities"
	StageServices        Stage = "services"
	StageExploitation    Stage = "exploitation"
)

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageOSINT, StageEnumeration, StageVulnerabilities, StageServices, StageExploitation:
		return true
	}
	return false
}

// OutputFormat selects the parser applied to a tool's raw output.
type OutputFormat string

const (
	OutputNone               OutputFormat = "none"
	OutputLinesOSINT         OutputFormat = "lines-osint"
	OutputJSONLVulnerability OutputFormat = "jsonl-vulnerability"
	OutputNmapXML            OutputFormat = "nmap-xml"
)

// IsValid reports whether f is a known output format. The empty format is
// treated as OutputNone.
func (f OutputFormat) IsValid() bool {
	switch f {
	case "", OutputNone, OutputLinesOSINT, OutputJSONLVulnerability, OutputNmapXML:
		return true
	}
	return false
}

// Selection is the policy used when several candidates match an input.
type Selection string

const (
	// SelectFirst uses one matching candidate per execution.
	SelectFirst Selection = "first"
	// SelectAll aggregates every matching candidate into one value.
	SelectAll Selection = "all"
)

// UnmarshalText accepts the policy in any case. Empty means first.
func (s *Selection) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", string(SelectFirst):
		*s = SelectFirst
	case string(SelectAll):
		*s = SelectAll
	default:
		return fmt.Errorf("unknown selection %q", text)
	}
	return nil
}

// Input is an entity requirement of a tool.
type Input struct {
	Name      string      `yaml:"name" json:"name"`
	Kind      entity.Kind `yaml:"kind" json:"kind"`
	Argument  string      `yaml:"argument,omitempty" json:"argument,omitempty"`
	Filter    string      `yaml:"filter,omitempty" json:"filter,omitempty"`
	Selection Selection   `yaml:"selection,omitempty" json:"selection,omitempty"`
	Required  bool        `yaml:"required,omitempty" json:"required,omitempty"`

	template *argument.Template
	program  cel.Program
}

// Matches reports whether a candidate of the given kind and values
// satisfies the input's kind and filter.
func (in *Input) Matches(kind entity.Kind, values argument.Values) bool {
	if kind != in.Kind {
		return false
	}
	if in.program == nil {
		return true
	}
	return evalFilter(in.program, kind, values)
}

// Render formats the input's argument fragment.
func (in *Input) Render(values argument.Values) (string, error) {
	if in.template == nil {
		return "", nil
	}
	return in.template.Format(values)
}

// Tool is a registered security tool.
type Tool struct {
	Name              string               `yaml:"name" json:"name"`
	Command           string               `yaml:"command" json:"command"`
	Stage             Stage                `yaml:"stage,omitempty" json:"stage,omitempty"`
	Arguments         string               `yaml:"arguments" json:"arguments"`
	OutputFormat      OutputFormat         `yaml:"output_format,omitempty" json:"output_format,omitempty"`
	ForEachTargetPort bool                 `yaml:"for_each_target_port,omitempty" json:"for_each_target_port,omitempty"`
	Intensities       map[Intensity]string `yaml:"intensities,omitempty" json:"intensities,omitempty"`
	Inputs            []*Input             `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	template *argument.Template
}

// Template returns the parsed tool-level template. It is nil until the tool
// is registered.
func (t *Tool) Template() *argument.Template {
	return t.template
}

// Input returns the input with the given name.
func (t *Tool) Input(name string) (*Input, bool) {
	i := slices.IndexFunc(t.Inputs, func(in *Input) bool { return in.Name == name })
	if i < 0 {
		return nil, false
	}
	return t.Inputs[i], true
}

// SupportsIntensity reports whether level is accepted. A tool without
// intensity fragments accepts every level.
func (t *Tool) SupportsIntensity(level Intensity) bool {
	if len(t.Intensities) == 0 {
		return level.IsValid()
	}
	_, ok := t.Intensities[level]
	return ok
}

// IntensityArgument returns the argument fragment for level.
func (t *Tool) IntensityArgument(level Intensity) (string, error) {
	if !t.SupportsIntensity(level) {
		return "", toolerr.New(t.Name, "intensity", toolerr.ErrCodeInvalidInput,
			fmt.Sprintf("intensity %s is not supported", level))
	}
	return t.Intensities[level], nil
}

// Format returns the output format, defaulting to OutputNone.
func (t *Tool) Format() OutputFormat {
	if t.OutputFormat == "" {
		return OutputNone
	}
	return t.OutputFormat
}
