package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/notify"
)

type storedFinding struct {
	executionID string
	entity      entity.Entity
}

// Memory is an in-process Store. Values are copied on the way in and out
// so callers never share state with the store.
type Memory struct {
	mu         sync.RWMutex
	targets    map[string]*entity.Target
	ports      []*entity.TargetPort
	endpoints  []*entity.TargetEndpoint
	wordlists  map[string]*entity.Wordlist
	parameters map[string][]*entity.Parameter
	tasks      map[string]*execution.Task
	executions map[string]*execution.Execution
	findings   []storedFinding
	users      map[string]notify.User
	members    map[string][]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		targets:    make(map[string]*entity.Target),
		wordlists:  make(map[string]*entity.Wordlist),
		parameters: make(map[string][]*entity.Parameter),
		tasks:      make(map[string]*execution.Task),
		executions: make(map[string]*execution.Execution),
		users:      make(map[string]notify.User),
		members:    make(map[string][]string),
	}
}

// PutTarget stores a target.
func (m *Memory) PutTarget(t *entity.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.targets[t.ID] = &cp
}

// PutTargetPort stores a port of a target.
func (m *Memory) PutTargetPort(p *entity.TargetPort) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.ports = append(m.ports, &cp)
}

// PutTargetEndpoint stores an endpoint of a target port.
func (m *Memory) PutTargetEndpoint(e *entity.TargetEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.endpoints = append(m.endpoints, &cp)
}

// PutWordlist stores a wordlist.
func (m *Memory) PutWordlist(w *entity.Wordlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.wordlists[w.ID] = &cp
}

// PutParameter attaches a parameter to a target.
func (m *Memory) PutParameter(targetID string, p *entity.Parameter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.parameters[targetID] = append(m.parameters[targetID], &cp)
}

// PutUser stores a user.
func (m *Memory) PutUser(u notify.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddMember adds a user to a project.
func (m *Memory) AddMember(projectID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.members[projectID], userID) {
		m.members[projectID] = append(m.members[projectID], userID)
	}
}

func (m *Memory) Target(_ context.Context, id string) (*entity.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) TargetPorts(_ context.Context, targetID string) ([]*entity.TargetPort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.TargetPort
	for _, p := range m.ports {
		if p.TargetID == targetID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) TargetEndpoints(_ context.Context, targetID string) ([]*entity.TargetEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	portIDs := make(map[string]bool)
	for _, p := range m.ports {
		if p.TargetID == targetID {
			portIDs[p.ID] = true
		}
	}
	var out []*entity.TargetEndpoint
	for _, e := range m.endpoints {
		if portIDs[e.TargetPortID] {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) Wordlists(_ context.Context, ids []string) ([]*entity.Wordlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entity.Wordlist, 0, len(ids))
	for _, id := range ids {
		w, ok := m.wordlists[id]
		if !ok {
			return nil, fmt.Errorf("wordlist %s: %w", id, ErrNotFound)
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) TargetInputs(_ context.Context, targetID string) ([]entity.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Entity
	for _, p := range m.parameters[targetID] {
		cp := *p
		out = append(out, &cp)
	}
	for _, f := range m.findings {
		exec, ok := m.executions[f.executionID]
		if !ok {
			continue
		}
		task, ok := m.tasks[exec.TaskID]
		if !ok || task.TargetID != targetID {
			continue
		}
		out = append(out, cloneEntity(f.entity))
	}
	return out, nil
}

func (m *Memory) CreateTask(_ context.Context, task *execution.Task, execs []*execution.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return fmt.Errorf("task %s: %w", task.ID, ErrConflict)
	}
	for _, e := range execs {
		if e.TaskID != task.ID {
			return fmt.Errorf("execution %s belongs to task %s, not %s", e.ID, e.TaskID, task.ID)
		}
		if _, ok := m.executions[e.ID]; ok {
			return fmt.Errorf("execution %s: %w", e.ID, ErrConflict)
		}
	}
	t := *task
	t.WordlistIDs = slices.Clone(task.WordlistIDs)
	m.tasks[task.ID] = &t
	for _, e := range execs {
		m.executions[e.ID] = cloneExecution(e)
	}
	return nil
}

func (m *Memory) Task(_ context.Context, id string) (*execution.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	cp := *t
	cp.WordlistIDs = slices.Clone(t.WordlistIDs)
	return &cp, nil
}

func (m *Memory) Execution(_ context.Context, id string) (*execution.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	return cloneExecution(e), nil
}

func (m *Memory) UpdateExecution(_ context.Context, e *execution.Execution, expected execution.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.executions[e.ID]
	if !ok {
		return fmt.Errorf("execution %s: %w", e.ID, ErrNotFound)
	}
	if cur.Status != expected {
		return fmt.Errorf("execution %s is %s, expected %s: %w", e.ID, cur.Status, expected, ErrConflict)
	}
	m.executions[e.ID] = cloneExecution(e)
	return nil
}

func (m *Memory) SaveFindings(_ context.Context, executionID string, findings []entity.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.executions[executionID]; !ok {
		return fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	for _, f := range findings {
		if f.Identity() == "" {
			return fmt.Errorf("%s finding has no ID", f.Kind())
		}
		replaced := false
		for i := range m.findings {
			if m.findings[i].entity.Identity() == f.Identity() {
				m.findings[i] = storedFinding{executionID: executionID, entity: cloneEntity(f)}
				replaced = true
				break
			}
		}
		if !replaced {
			m.findings = append(m.findings, storedFinding{executionID: executionID, entity: cloneEntity(f)})
		}
	}
	return nil
}

func (m *Memory) Findings(_ context.Context, executionID string) ([]entity.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Entity
	for _, f := range m.findings {
		if f.executionID == executionID {
			out = append(out, cloneEntity(f.entity))
		}
	}
	return out, nil
}

func (m *Memory) User(_ context.Context, id string) (notify.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return notify.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) ProjectMembers(_ context.Context, projectID string) ([]notify.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []notify.User
	for _, id := range m.members[projectID] {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// cloneEntity deep-copies an entity through its JSON form.
func cloneEntity(e entity.Entity) entity.Entity {
	data, err := entity.Marshal(e)
	if err != nil {
		panic(fmt.Sprintf("clone %s entity: %v", e.Kind(), err))
	}
	out, err := entity.Unmarshal(data)
	if err != nil {
		panic(fmt.Sprintf("clone %s entity: %v", e.Kind(), err))
	}
	return out
}

func cloneExecution(e *execution.Execution) *execution.Execution {
	cp := *e
	cp.Entities = make(entity.List, len(e.Entities))
	for i, ent := range e.Entities {
		cp.Entities[i] = cloneEntity(ent)
	}
	return &cp
}
