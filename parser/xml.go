package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// ParseXML parses an XML report into T. Directives such as DOCTYPE and
// processing instructions are ignored; non-UTF-8 charsets are read as is.
func ParseXML[T any](data []byte) (*T, error) {
	var result T
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return &result, nil
}
