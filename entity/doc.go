// Package entity defines the closed set of entity kinds a tool can consume as
// input or produce as a finding.
//
// Every kind is a concrete struct implementing Entity. Dispatch over kinds
// goes through Visitor: each entity's Accept calls the visitor method for its
// own kind, so adding a kind adds a Visitor method and every visitor in the
// module stops compiling until it handles the new kind.
//
// Entities travel between pipeline stages as JSON. List marshals a
// heterogeneous slice as {"kind": ..., "data": ...} envelopes.
package entity
