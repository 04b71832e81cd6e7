package argument

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrMissingValue is returned by Format when a placeholder has no value.
var ErrMissingValue = errors.New("missing value for placeholder")

// ErrUnknownPlaceholder is returned by Validate for undeclared names.
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

// segment is either literal text or a placeholder reference.
type segment struct {
	literal string
	name    string
}

// Template is a parsed argument template.
type Template struct {
	raw      string
	segments []segment
	names    []string
}

// ParseTemplate parses raw into a Template.
func ParseTemplate(raw string) (*Template, error) {
	t := &Template{raw: raw}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '{':
			if i+1 < len(raw) && raw[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed placeholder at offset %d in %q", i, raw)
			}
			name := raw[i+1 : i+1+end]
			if !validName(name) {
				return nil, fmt.Errorf("invalid placeholder name %q in %q", name, raw)
			}
			flush()
			t.segments = append(t.segments, segment{name: name})
			if !slices.Contains(t.names, name) {
				t.names = append(t.names, name)
			}
			i += end + 1
		case '}':
			if i+1 < len(raw) && raw[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("single '}' at offset %d in %q", i, raw)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustParseTemplate is like ParseTemplate but panics on error. For static
// templates.
func MustParseTemplate(raw string) *Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// String returns the raw template.
func (t *Template) String() string {
	return t.raw
}

// Names returns the placeholder names in order of first appearance.
func (t *Template) Names() []string {
	return slices.Clone(t.names)
}

// Validate reports placeholders that are not in allowed.
func (t *Template) Validate(allowed ...string) error {
	var errs []error
	for _, name := range t.names {
		if !slices.Contains(allowed, name) {
			errs = append(errs, fmt.Errorf("%w %q in %q", ErrUnknownPlaceholder, name, t.raw))
		}
	}
	return errors.Join(errs...)
}

// Format substitutes values into the template. Each value becomes exactly
// one argument: values containing whitespace, quotes or backslashes are
// quoted with Quote. Empty values are stripped first; any placeholder left
// without a value is an error.
func (t *Template) Format(values Values) (string, error) {
	cleaned := values.Clean()
	var b strings.Builder
	for _, s := range t.segments {
		if s.name == "" {
			b.WriteString(s.literal)
			continue
		}
		v, ok := cleaned[s.name]
		if !ok {
			return "", fmt.Errorf("%w %q in %q", ErrMissingValue, s.name, t.raw)
		}
		b.WriteString(Quote(v))
	}
	return b.String(), nil
}

// FormatPartial substitutes values verbatim and drops placeholders without
// a value, collapsing the unquoted whitespace they leave behind. Values are
// argument fragments, already rendered by Format or declared by the tool.
func (t *Template) FormatPartial(values Values) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.name == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(values[s.name])
	}
	return collapseSpace(b.String())
}

// Format parses raw and formats it in one step.
func Format(raw string, values Values) (string, error) {
	t, err := ParseTemplate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(values)
}
