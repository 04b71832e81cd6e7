package notify

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/finding"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Event is a finished execution and the findings it produced.
type Event struct {
	Task      *execution.Task
	Execution *execution.Execution
	Executor  User
	Findings  []entity.Entity
}

// DefaultSubject and DefaultBody are the built-in templates.
const (
	DefaultSubject = `[taskforge] {{ .Execution.Tool }} {{ .Execution.Status }}` +
		`{{ with .Vulnerabilities }} - {{ len . }} {{ len . | plural "vulnerability" "vulnerabilities" }}{{ end }}`

	DefaultBody = `Hello {{ .Recipient.Username | default .Recipient.Email }},

Execution {{ .Execution.ID }} of {{ .Execution.Tool }} finished with status {{ .Execution.Status }}.
{{- with .Execution.Arguments }}
Arguments: {{ . }}
{{- end }}
{{- if .Duration }}
Duration: {{ .Duration }}
{{- end }}

Findings:
{{- range $kind, $n := .Counts }}
  {{ $kind | replace "_" " " | title }}: {{ $n }}
{{- else }}
  none
{{- end }}
{{- with .Vulnerabilities }}

Vulnerabilities:
{{- range . }}
  [{{ .Severity.String | upper }}] {{ .Name }}{{ with .CVE }} ({{ . }}){{ end }}{{ with .Reference }} {{ . }}{{ end }}
{{- end }}
{{- end }}
`
)

// templateData is what message templates see.
type templateData struct {
	Task            *execution.Task
	Execution       *execution.Execution
	Recipient       User
	Findings        []entity.Entity
	Counts          map[string]int
	Vulnerabilities []*entity.Vulnerability
	Duration        time.Duration
}

// Renderer builds messages from text/template templates with the sprig
// function set.
type Renderer struct {
	subject *template.Template
	body    *template.Template
}

// NewRenderer parses the subject and body templates.
func NewRenderer(subject, body string) (*Renderer, error) {
	s, err := template.New("subject").Funcs(funcMap()).Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	b, err := template.New("body").Funcs(funcMap()).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Renderer{subject: s, body: b}, nil
}

// DefaultRenderer returns a renderer for the built-in templates.
func DefaultRenderer() *Renderer {
	r, err := NewRenderer(DefaultSubject, DefaultBody)
	if err != nil {
		panic(err)
	}
	return r
}

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["plural"] = func(one, many string, n int) string {
		if n == 1 {
			return one
		}
		return many
	}
	return fm
}

// Render builds the message for one recipient.
func (r *Renderer) Render(ev Event, recipient User) (Message, error) {
	data := newTemplateData(ev, recipient)

	var subject, body bytes.Buffer
	if err := r.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := r.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{Subject: subject.String(), Body: body.String()}, nil
}

func newTemplateData(ev Event, recipient User) templateData {
	data := templateData{
		Task:      ev.Task,
		Execution: ev.Execution,
		Recipient: recipient,
		Findings:  ev.Findings,
		Counts:    make(map[string]int),
	}
	if ev.Execution != nil {
		data.Duration = ev.Execution.Duration()
	}
	for _, f := range ev.Findings {
		data.Counts[string(f.Kind())]++
		if v, ok := f.(*entity.Vulnerability); ok {
			data.Vulnerabilities = append(data.Vulnerabilities, v)
		}
	}
	sort.SliceStable(data.Vulnerabilities, func(i, j int) bool {
		return finding.CompareSeverity(data.Vulnerabilities[i].Severity, data.Vulnerabilities[j].Severity) > 0
	})
	return data
}
