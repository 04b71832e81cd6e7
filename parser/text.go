package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a named regular expression.
type Pattern struct {
	Name  string
	Regex string
}

// Match is a line matched by a LineParser.
type Match struct {
	// Pattern is the name of the pattern that matched
	Pattern string

	// Line is the trimmed input line
	Line string

	// Groups holds the named capture groups
	Groups map[string]string
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
}

// LineParser matches output line by line against ordered patterns. The
// first pattern that matches a line wins.
type LineParser struct {
	patterns []compiledPattern
}

// NewLineParser compiles patterns in order.
func NewLineParser(patterns ...Pattern) (*LineParser, error) {
	compiled := make([]compiledPattern, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", p.Name, err)
		}
		compiled = append(compiled, compiledPattern{name: p.Name, re: re})
	}

	return &LineParser{patterns: compiled}, nil
}

// MustLineParser is like NewLineParser but panics on error.
func MustLineParser(patterns ...Pattern) *LineParser {
	p, err := NewLineParser(patterns...)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse returns one Match per line that any pattern matches. Blank lines
// and surrounding whitespace are ignored.
func (p *LineParser) Parse(data []byte) ([]Match, error) {
	var results []Match
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		for _, cp := range p.patterns {
			match := cp.re.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			groups := make(map[string]string)
			for i, name := range cp.re.SubexpNames() {
				if i > 0 && name != "" {
					groups[name] = match[i]
				}
			}
			results = append(results, Match{Pattern: cp.name, Line: line, Groups: groups})
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading text: %w", err)
	}

	return results, nil
}
