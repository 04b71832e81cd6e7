// Package tool declares the security tools a task can run and the inputs
// each tool consumes.
//
// # Core Concepts
//
// Tool: a command line program with
//   - a tool-level argument template whose placeholders are the tool's input
//     names plus the reserved names "intensity" and "output"
//   - a map from Intensity to an argument fragment
//   - an output format telling the invoker how to turn raw output into findings
//   - the for_each_target_port flag, which asks the planner for one
//     execution per target port
//
// Input: one entity requirement of a tool. An input names the entity kind it
// consumes, an argument fragment rendered from that entity's values, an
// optional CEL filter, a selection policy (first or all) and whether it is
// required.
//
// # Registration
//
// Tools are validated once, when they are added to a Registry. Templates are
// parsed and their placeholder names checked, CEL filters are compiled, and
// inputs that cannot be satisfied (unknown kinds, "all" on a kind that cannot
// be aggregated) are rejected with a configuration error.
//
//	reg := tool.NewRegistry()
//	if err := reg.LoadFile("tools.yaml"); err != nil {
//		return err
//	}
//	nikto, ok := reg.Get("nikto")
//
// # Filters
//
// A filter is a CEL expression evaluated against two variables: entity, a
// map of the candidate's placeholder values, and kind, its entity kind.
//
//	filter: 'has(entity.service) && entity.service.contains("http")'
//
// An expression that fails at evaluation time, for example by reading a
// missing key, does not match.
package tool
