package tool

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intensity is how aggressive a tool run should be.
type Intensity int

const (
	IntensitySneaky Intensity = iota + 1
	IntensityLow
	IntensityNormal
	IntensityHard
	IntensityInsane
)

var intensityNames = map[Intensity]string{
	IntensitySneaky: "sneaky",
	IntensityLow:    "low",
	IntensityNormal: "normal",
	IntensityHard:   "hard",
	IntensityInsane: "insane",
}

// IsValid reports whether i is one of the five levels.
func (i Intensity) IsValid() bool {
	return i >= IntensitySneaky && i <= IntensityInsane
}

func (i Intensity) String() string {
	if name, ok := intensityNames[i]; ok {
		return name
	}
	return "intensity(" + strconv.Itoa(int(i)) + ")"
}

// ParseIntensity accepts a level name or its number.
func ParseIntensity(s string) (Intensity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if i := Intensity(n); i.IsValid() {
			return i, nil
		}
		return 0, fmt.Errorf("intensity %d out of range", n)
	}
	for i, name := range intensityNames {
		if name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown intensity %q", s)
}

// MarshalText encodes the level by name.
func (i Intensity) MarshalText() ([]byte, error) {
	if !i.IsValid() {
		return nil, fmt.Errorf("invalid intensity %d", int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText decodes a level name or number.
func (i *Intensity) UnmarshalText(text []byte) error {
	v, err := ParseIntensity(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// UnmarshalYAML decodes a level name or number, including map keys.
func (i *Intensity) UnmarshalYAML(node *yaml.Node) error {
	return i.UnmarshalText([]byte(node.Value))
}
