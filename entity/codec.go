package entity

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form of a single entity.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes an entity with its kind tag.
func Marshal(e Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s entity: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{Kind: e.Kind(), Data: data})
}

// Unmarshal decodes an entity produced by Marshal.
func Unmarshal(data []byte) (Entity, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity envelope: %w", err)
	}
	return decode(env)
}

func decode(env envelope) (Entity, error) {
	e, err := New(env.Kind)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s entity: %w", env.Kind, err)
		}
	}
	return e, nil
}

// List is an ordered, heterogeneous entity slice with a tagged JSON encoding.
type List []Entity

// MarshalJSON encodes the list as an array of envelopes.
func (l List) MarshalJSON() ([]byte, error) {
	envs := make([]envelope, 0, len(l))
	for _, e := range l {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s entity: %w", e.Kind(), err)
		}
		envs = append(envs, envelope{Kind: e.Kind(), Data: data})
	}
	return json.Marshal(envs)
}

// UnmarshalJSON decodes an array of envelopes.
func (l *List) UnmarshalJSON(data []byte) error {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return fmt.Errorf("failed to unmarshal entity list: %w", err)
	}
	out := make(List, 0, len(envs))
	for i, env := range envs {
		e, err := decode(env)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		out = append(out, e)
	}
	*l = out
	return nil
}
