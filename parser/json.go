package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// maxLineSize bounds a single JSON line. Some scanners emit large records.
const maxLineSize = 4 * 1024 * 1024

// ParseJSONLines parses newline-delimited JSON output using generics.
// Blank lines are skipped; any other undecodable line is an error.
func ParseJSONLines[T any](data []byte) ([]T, error) {
	var results []T
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		results = append(results, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSON lines: %w", err)
	}

	return results, nil
}

// ParseJSON parses a single JSON document using generics.
func ParseJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &result, nil
}
