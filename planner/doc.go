// Package planner decomposes a task into the concrete executions its tool
// needs and renders the argument string of each one.
//
// The candidate pool holds the task's wordlists, the target, its ports in
// ascending order, the endpoints under those ports and any extra entities
// such as earlier findings or user parameters. Each tool input selects from
// that pool:
//
//   - inputs selecting "all" receive every matching candidate, aggregated
//     into one value, in every execution
//   - a wordlist input selecting "first" replicates: one execution per
//     matching wordlist
//   - a target_port input selecting "first" replicates when the tool is
//     declared for_each_target_port, and endpoint inputs are then limited to
//     the endpoints of that execution's port
//   - any other "first" input takes the first match
//
// Several replicating inputs multiply. A required input without a match
// removes its branch silently.
package planner
