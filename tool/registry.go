package tool

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/zero-day-ai/taskforge/argument"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/toolerr"
)

// Registry holds validated tools by name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	env   *cel.Env
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	env, err := newFilterEnv()
	if err != nil {
		// The environment only declares two fixed variables.
		panic(fmt.Sprintf("tool: create filter environment: %v", err))
	}
	return &Registry{
		tools: make(map[string]*Tool),
		env:   env,
	}
}

// Register validates t and stores a compiled copy. Every problem found is
// reported in the returned error, each as a configuration error.
func (r *Registry) Register(t Tool) (*Tool, error) {
	compiled, err := r.compile(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[compiled.Name]; exists {
		return nil, toolerr.Configuration(compiled.Name, "register", "tool already registered")
	}
	r.tools[compiled.Name] = compiled
	return compiled, nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func (r *Registry) compile(t Tool) (*Tool, error) {
	cfgErr := func(format string, args ...any) *toolerr.Error {
		return toolerr.Configuration(t.Name, "register", format, args...)
	}

	var errs []error
	if t.Name == "" {
		errs = append(errs, cfgErr("tool name is required"))
	}
	if t.Command == "" {
		errs = append(errs, cfgErr("command is required"))
	}
	if t.Stage != "" && !t.Stage.IsValid() {
		errs = append(errs, cfgErr("unknown stage %q", t.Stage))
	}
	if !t.OutputFormat.IsValid() {
		errs = append(errs, cfgErr("unknown output format %q", t.OutputFormat))
	}
	for level := range t.Intensities {
		if !level.IsValid() {
			errs = append(errs, cfgErr("invalid intensity %d", int(level)))
		}
	}

	out := t
	out.Intensities = make(map[Intensity]string, len(t.Intensities))
	for k, v := range t.Intensities {
		out.Intensities[k] = v
	}
	out.Inputs = make([]*Input, 0, len(t.Inputs))

	names := []string{PlaceholderIntensity, PlaceholderOutput}
	hasTargetPort := false
	for _, in := range t.Inputs {
		if in == nil {
			errs = append(errs, cfgErr("nil input"))
			continue
		}
		compiled, err := r.compileInput(t.Name, *in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if slices.Contains(names, compiled.Name) {
			errs = append(errs, cfgErr("input name %q is reserved or duplicated", compiled.Name))
			continue
		}
		names = append(names, compiled.Name)
		if compiled.Kind == entity.KindTargetPort {
			hasTargetPort = true
		}
		out.Inputs = append(out.Inputs, compiled)
	}
	if t.ForEachTargetPort && !hasTargetPort {
		errs = append(errs, cfgErr("for_each_target_port requires a target_port input"))
	}

	tpl, err := argument.ParseTemplate(t.Arguments)
	if err != nil {
		errs = append(errs, cfgErr("arguments: %v", err).WithCause(err))
	} else if err := tpl.Validate(names...); err != nil {
		errs = append(errs, cfgErr("arguments: %v", err).WithCause(err))
	}
	out.template = tpl

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &out, nil
}

func (r *Registry) compileInput(toolName string, in Input) (*Input, error) {
	cfgErr := func(format string, args ...any) *toolerr.Error {
		return toolerr.Configuration(toolName, "register", "input %q: "+format, append([]any{in.Name}, args...)...)
	}

	if in.Name == "" {
		return nil, cfgErr("name is required")
	}
	if _, err := argument.ParseTemplate("{" + in.Name + "}"); err != nil {
		return nil, cfgErr("name is not a valid placeholder")
	}
	if !in.Kind.IsValid() {
		return nil, cfgErr("unsupported entity kind %q", in.Kind)
	}
	if in.Selection == "" {
		in.Selection = SelectFirst
	}
	if in.Selection == SelectAll && !in.Kind.Aggregatable() {
		return nil, cfgErr("entity kind %q cannot be selected with %q", in.Kind, SelectAll)
	}

	if in.Argument != "" {
		tpl, err := argument.ParseTemplate(in.Argument)
		if err != nil {
			return nil, cfgErr("argument: %v", err).WithCause(err)
		}
		if err := tpl.Validate(argument.KeysFor(in.Kind)...); err != nil {
			return nil, cfgErr("argument: %v", err).WithCause(err)
		}
		in.template = tpl
	}

	if in.Filter != "" {
		prg, err := compileFilter(r.env, in.Filter)
		if err != nil {
			return nil, cfgErr("%v", err).WithCause(err)
		}
		in.program = prg
	}
	return &in, nil
}
