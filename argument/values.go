package argument

import (
	"maps"
	"slices"
)

// listSeparator joins values accumulated from several entities.
const listSeparator = ","

// Values maps placeholder names to rendered values.
type Values map[string]string

// Clean returns a copy without empty values.
func (v Values) Clean() Values {
	out := make(Values, len(v))
	for k, val := range v {
		if val != "" {
			out[k] = val
		}
	}
	return out
}

// Set assigns key when value is not empty.
func (v Values) Set(key, value string) {
	if value != "" {
		v[key] = value
	}
}

// Append adds value to the comma separated list under key, skipping empty
// values. Repeated values are kept so lists built from the same entities
// stay aligned by position.
func (v Values) Append(key, value string) {
	if value == "" {
		return
	}
	if current := v[key]; current != "" {
		value = current + listSeparator + value
	}
	v[key] = value
}

// Merge appends every entry of other into v.
func (v Values) Merge(other Values) {
	for _, k := range slices.Sorted(maps.Keys(other)) {
		v.Append(k, other[k])
	}
}
