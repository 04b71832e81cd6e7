// Package notify tells users about finished executions.
//
// Recipients selects who hears about an execution from the executor's and
// the project members' notification scopes. Each recipient gets one message
// on their preferred channel; a failed delivery is logged and does not
// affect the other recipients.
package notify
