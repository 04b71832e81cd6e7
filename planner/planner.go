package planner

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zero-day-ai/taskforge/argument"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/tool"
	"github.com/zero-day-ai/taskforge/toolerr"
)

// Group is one planned execution: the entities it consumes, in pool order,
// and its rendered argument string.
type Group struct {
	Entities  []entity.Entity
	Arguments string
}

// branch holds the candidate chosen for each replicating input, indexed
// like the tool's inputs.
type branch []*candidate

// Plan returns the executions needed to run task with t over pool.
//
// An unsupported intensity or an unregistered tool fails the whole task, as
// does any pool entity that could not be parsed.
// Rendering failures of required inputs fail only their own branch; those
// errors are joined and returned together with the groups that succeeded.
func Plan(task *execution.Task, t *tool.Tool, pool *Pool) ([]Group, error) {
	if t == nil || t.Template() == nil {
		return nil, toolerr.Configuration(toolName(t), "plan", "tool is not registered")
	}
	if task == nil {
		return nil, toolerr.New(t.Name, "plan", toolerr.ErrCodeInvalidInput, "task is required")
	}
	intensity, err := t.IntensityArgument(task.Intensity)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	if err := pool.Err(); err != nil {
		return nil, toolerr.Configuration(t.Name, "plan", "candidate pool: %v", err).WithCause(err)
	}

	matches := make([][]*candidate, len(t.Inputs))
	for i, in := range t.Inputs {
		for j := range pool.candidates {
			c := &pool.candidates[j]
			if in.Matches(c.entity.Kind(), c.values) {
				matches[i] = append(matches[i], c)
			}
		}
	}

	branches := []branch{make(branch, len(t.Inputs))}
	for i, in := range t.Inputs {
		if !replicates(t, in) {
			continue
		}
		if len(matches[i]) == 0 {
			if in.Required {
				return nil, nil
			}
			continue
		}
		next := make([]branch, 0, len(branches)*len(matches[i]))
		for _, b := range branches {
			for _, c := range matches[i] {
				nb := slices.Clone(b)
				nb[i] = c
				next = append(next, nb)
			}
		}
		branches = next
	}

	var (
		groups []Group
		errs   []error
	)
	for _, b := range branches {
		g, ok, err := resolve(t, intensity, matches, b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			groups = append(groups, g)
		}
	}
	return groups, errors.Join(errs...)
}

// replicates reports whether in yields one execution per matching candidate.
func replicates(t *tool.Tool, in *tool.Input) bool {
	if in.Selection == tool.SelectAll {
		return false
	}
	switch in.Kind {
	case entity.KindWordlist:
		return true
	case entity.KindTargetPort:
		return t.ForEachTargetPort
	}
	return false
}

// resolve selects the entities of one branch and renders its arguments.
// ok is false when a required input has nothing to select.
func resolve(t *tool.Tool, intensity string, matches [][]*candidate, b branch) (Group, bool, error) {
	var port *entity.TargetPort
	for _, c := range b {
		if c == nil {
			continue
		}
		if p, isPort := c.entity.(*entity.TargetPort); isPort {
			port = p
			break
		}
	}

	values := argument.Values{
		tool.PlaceholderIntensity: intensity,
		tool.PlaceholderOutput:    tool.OutputToken,
	}
	selected := make(map[int]*candidate)

	for i, in := range t.Inputs {
		var chosen []*candidate
		switch {
		case b[i] != nil:
			chosen = []*candidate{b[i]}
		case replicates(t, in):
			// optional replicating input with no match
		default:
			cands := matches[i]
			if port != nil && in.Kind == entity.KindTargetEndpoint {
				cands = endpointsOf(cands, port)
			}
			if in.Selection == tool.SelectAll {
				chosen = cands
			} else if len(cands) > 0 {
				chosen = cands[:1]
			}
		}

		if len(chosen) == 0 {
			if in.Required {
				return Group{}, false, nil
			}
			continue
		}

		v := argument.Values{}
		for _, c := range chosen {
			v.Merge(c.values)
		}
		fragment, err := in.Render(v)
		if err != nil {
			if in.Required {
				return Group{}, false, toolerr.New(t.Name, "plan", toolerr.ErrCodeInvalidInput,
					fmt.Sprintf("input %q: %v", in.Name, err)).WithCause(err)
			}
			continue
		}
		values[in.Name] = fragment
		for _, c := range chosen {
			selected[c.index] = c
		}
	}

	ordered := make([]*candidate, 0, len(selected))
	for _, c := range selected {
		ordered = append(ordered, c)
	}
	slices.SortFunc(ordered, func(a, b *candidate) int { return a.index - b.index })

	g := Group{
		Entities:  make([]entity.Entity, len(ordered)),
		Arguments: t.Template().FormatPartial(values),
	}
	for i, c := range ordered {
		g.Entities[i] = c.entity
	}
	return g, true, nil
}

func endpointsOf(cands []*candidate, port *entity.TargetPort) []*candidate {
	var out []*candidate
	for _, c := range cands {
		if ep, ok := c.entity.(*entity.TargetEndpoint); ok && ep.TargetPortID == port.ID {
			out = append(out, c)
		}
	}
	return out
}

func toolName(t *tool.Tool) string {
	if t == nil {
		return ""
	}
	return t.Name
}
