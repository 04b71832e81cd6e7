package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/taskforge"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/tool"
)

// planFlags describe an ad-hoc target for previewing a plan without a
// database.
type planFlags struct {
	tool      string
	intensity string
	address   string
	ports     []int
	endpoints []string
	wordlists []string
	params    []string
	format    string
}

func newPlanCommand(a *app) *cobra.Command {
	f := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the executions a task would run against an ad-hoc target",
		Example: `  taskforge plan --tool nmap --address 10.0.0.1 --port 22 --port 443
  taskforge plan --tool gobuster --address example.com --port 443 --wordlist /usr/share/wordlists/common.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPlan(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.tool, "tool", "", "tool to plan (required)")
	cmd.Flags().StringVar(&f.intensity, "intensity", "normal", "intensity level")
	cmd.Flags().StringVar(&f.address, "address", "", "target address (required)")
	cmd.Flags().IntSliceVar(&f.ports, "port", nil, "target port, repeatable")
	cmd.Flags().StringArrayVar(&f.endpoints, "endpoint", nil, "endpoint as PORT:PATH, repeatable")
	cmd.Flags().StringArrayVar(&f.wordlists, "wordlist", nil, "wordlist as [TYPE:]PATH, repeatable")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "parameter as KEY=VALUE, repeatable")
	cmd.Flags().StringVarP(&f.format, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("tool")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, f *planFlags) error {
	if f.format != "text" && f.format != "json" {
		return fmt.Errorf("unknown output format %q", f.format)
	}
	intensity, err := tool.ParseIntensity(f.intensity)
	if err != nil {
		return err
	}
	tools, err := loadTools(a.cfg)
	if err != nil {
		return err
	}

	st := store.NewMemory()
	wordlistIDs, err := seedTarget(st, f)
	if err != nil {
		return err
	}

	engine, err := taskforge.New(tools, st, nil, taskforge.WithLogger(a.logger))
	if err != nil {
		return err
	}
	task := execution.NewTask(adhocProject, adhocTarget, f.tool, intensity, "", wordlistIDs...)
	plan, err := engine.Preview(cmd.Context(), task)
	if err != nil {
		return err
	}
	if plan.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: some executions were dropped: %v\n", plan.Err)
	}

	t, _ := tools.Get(f.tool)
	if f.format == "json" {
		return writePlanJSON(cmd.OutOrStdout(), t, plan)
	}
	writePlanText(cmd.OutOrStdout(), t, plan)
	return nil
}

const (
	adhocProject = "adhoc"
	adhocTarget  = "target"
)

// seedTarget stores the flag-described target and returns the wordlist IDs
// in flag order.
func seedTarget(st *store.Memory, f *planFlags) ([]string, error) {
	st.PutTarget(&entity.Target{
		ID:        adhocTarget,
		ProjectID: adhocProject,
		Address:   f.address,
		Type:      targetType(f.address),
	})

	portIDs := make(map[int]string, len(f.ports))
	for _, p := range f.ports {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid port %d", p)
		}
		id := "port-" + strconv.Itoa(p)
		portIDs[p] = id
		st.PutTargetPort(&entity.TargetPort{ID: id, TargetID: adhocTarget, Port: p})
	}

	for i, raw := range f.endpoints {
		portStr, path, ok := strings.Cut(raw, ":")
		port, err := strconv.Atoi(portStr)
		if !ok || err != nil || path == "" {
			return nil, fmt.Errorf("invalid endpoint %q, want PORT:PATH", raw)
		}
		portID, known := portIDs[port]
		if !known {
			return nil, fmt.Errorf("endpoint %q references undeclared port %d", raw, port)
		}
		st.PutTargetEndpoint(&entity.TargetEndpoint{
			ID:           "endpoint-" + strconv.Itoa(i),
			TargetPortID: portID,
			Endpoint:     path,
		})
	}

	ids := make([]string, 0, len(f.wordlists))
	for i, raw := range f.wordlists {
		typ, path := entity.WordlistEndpoint, raw
		if kind, rest, ok := strings.Cut(raw, ":"); ok && (kind == string(entity.WordlistEndpoint) || kind == string(entity.WordlistSubdomain)) {
			typ, path = entity.WordlistType(kind), rest
		}
		id := "wordlist-" + strconv.Itoa(i)
		st.PutWordlist(&entity.Wordlist{ID: id, Name: path, Type: typ, Path: path})
		ids = append(ids, id)
	}

	for i, raw := range f.params {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want KEY=VALUE", raw)
		}
		st.PutParameter(adhocTarget, &entity.Parameter{
			ID:    "param-" + strconv.Itoa(i),
			Key:   entity.ParameterKey(key),
			Value: value,
		})
	}
	return ids, nil
}

// targetType classifies an address the way users declare targets.
func targetType(address string) entity.TargetType {
	if addr, err := netip.ParseAddr(address); err == nil {
		if addr.IsPrivate() || addr.IsLoopback() {
			return entity.TargetPrivateIP
		}
		return entity.TargetPublicIP
	}
	if _, err := netip.ParsePrefix(address); err == nil {
		return entity.TargetNetwork
	}
	if first, _, ok := strings.Cut(address, "-"); ok {
		if _, err := netip.ParseAddr(first); err == nil {
			return entity.TargetIPRange
		}
	}
	return entity.TargetDomain
}

func writePlanText(w io.Writer, t *tool.Tool, plan *taskforge.Plan) {
	if len(plan.Executions) == 0 {
		fmt.Fprintln(w, "no executions: a required input has no candidate")
		return
	}
	for _, ex := range plan.Executions {
		fmt.Fprintf(w, "%s %s\n", t.Command, ex.Arguments)
	}
}

type planOutput struct {
	Tool       string          `json:"tool"`
	Command    string          `json:"command"`
	Executions []planExecution `json:"executions"`
	Error      string          `json:"error,omitempty"`
}

type planExecution struct {
	Arguments string      `json:"arguments"`
	Entities  entity.List `json:"entities"`
}

func writePlanJSON(w io.Writer, t *tool.Tool, plan *taskforge.Plan) error {
	out := planOutput{
		Tool:       t.Name,
		Command:    t.Command,
		Executions: make([]planExecution, 0, len(plan.Executions)),
	}
	for _, ex := range plan.Executions {
		out.Executions = append(out.Executions, planExecution{Arguments: ex.Arguments, Entities: ex.Entities})
	}
	if plan.Err != nil {
		out.Error = plan.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
