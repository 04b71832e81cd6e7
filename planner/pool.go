package planner

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zero-day-ai/taskforge/argument"
	"github.com/zero-day-ai/taskforge/entity"
)

// candidate is a pool entry with its parsed values.
type candidate struct {
	index  int
	entity entity.Entity
	values argument.Values
}

// Pool is the ordered set of entities a task's inputs select from.
type Pool struct {
	target     *entity.Target
	candidates []candidate
	errs       []error
}

// Candidates builds the pool in planning order: wordlists as given, the
// target, ports by ascending number, endpoints grouped by their port's order
// and kept in discovery order within a port, then extra entities.
func Candidates(wordlists []*entity.Wordlist, target *entity.Target, ports []*entity.TargetPort, endpoints []*entity.TargetEndpoint, extra ...entity.Entity) *Pool {
	p := &Pool{target: target}

	for _, w := range wordlists {
		if w != nil {
			p.add(w)
		}
	}
	if target != nil {
		p.add(target)
	}

	sorted := slices.DeleteFunc(slices.Clone(ports), func(port *entity.TargetPort) bool { return port == nil })
	slices.SortStableFunc(sorted, func(a, b *entity.TargetPort) int { return a.Port - b.Port })
	for _, port := range sorted {
		p.add(port)
	}

	rank := make(map[string]int, len(sorted))
	for i, port := range sorted {
		rank[port.ID] = i
	}
	eps := slices.DeleteFunc(slices.Clone(endpoints), func(ep *entity.TargetEndpoint) bool { return ep == nil })
	slices.SortStableFunc(eps, func(a, b *entity.TargetEndpoint) int {
		ra, okA := rank[a.TargetPortID]
		rb, okB := rank[b.TargetPortID]
		if !okA {
			ra = len(sorted)
		}
		if !okB {
			rb = len(sorted)
		}
		return ra - rb
	})
	for _, ep := range eps {
		p.add(ep)
	}

	for _, e := range extra {
		if e != nil {
			p.add(e)
		}
	}
	return p
}

// add appends e as the next candidate. Entities whose values cannot be
// parsed are left out and reported by Err.
func (p *Pool) add(e entity.Entity) {
	var values argument.Values
	if port, ok := e.(*entity.TargetPort); ok && p.target != nil {
		values = argument.TargetPortAddress(port, p.target)
	} else {
		var err error
		if values, err = argument.Parse(e); err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s entity: %w", e.Kind(), err))
			return
		}
	}
	p.candidates = append(p.candidates, candidate{
		index:  len(p.candidates),
		entity: e,
		values: values,
	})
}

// Entities returns the pool contents in planning order.
func (p *Pool) Entities() []entity.Entity {
	out := make([]entity.Entity, len(p.candidates))
	for i, c := range p.candidates {
		out[i] = c.entity
	}
	return out
}

// Err returns the joined parse errors of entities left out of the pool.
func (p *Pool) Err() error {
	return errors.Join(p.errs...)
}

// Len returns the number of candidates.
func (p *Pool) Len() int {
	return len(p.candidates)
}
