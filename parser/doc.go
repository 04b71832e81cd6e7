// Package parser provides the generic decoding helpers used to turn raw tool
// output into findings: newline-delimited JSON, single JSON documents, XML
// reports and line-by-line regular expression matching.
//
// Tool specific report structures live with the output parsers in the exec
// package; this package only knows about formats.
package parser
