package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/taskforge"
	"github.com/zero-day-ai/taskforge/entity"
)

// run executes the root command with the test config and returns stdout
// and stderr.
func run(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", "testdata/taskforge.yaml"}, args...))
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRoot_Version(t *testing.T) {
	out, _, err := run(t, context.Background(), "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRoot_MissingConfigFile(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", "testdata/missing.yaml", "plan", "--tool", "nmap", "--address", "10.0.0.1"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "failed to load config")
}

func TestPlan_AggregatesPorts(t *testing.T) {
	out, _, err := run(t, context.Background(),
		"plan", "--tool", "nmap", "--address", "10.0.0.1", "--port", "443", "--port", "22")
	require.NoError(t, err)
	assert.Equal(t, "nmap -T3 -sV -p 22,443 -oX {output} 10.0.0.1\n", out)
}

func TestPlan_JSON(t *testing.T) {
	out, _, err := run(t, context.Background(),
		"plan", "--tool", "gobuster", "--address", "10.0.0.1", "--port", "80",
		"--wordlist", "/wl/a.txt", "--wordlist", "/wl/b.lst", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Tool       string `json:"tool"`
		Executions []struct {
			Arguments string      `json:"arguments"`
			Entities  entity.List `json:"entities"`
		} `json:"executions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "gobuster", got.Tool)
	require.Len(t, got.Executions, 1)
	assert.Equal(t, "dir -u http://10.0.0.1 -w /wl/a.txt -t 10", got.Executions[0].Arguments)
	require.Len(t, got.Executions[0].Entities, 2)
	assert.Equal(t, entity.KindWordlist, got.Executions[0].Entities[0].Kind())
}

func TestPlan_NoCandidates(t *testing.T) {
	out, _, err := run(t, context.Background(),
		"plan", "--tool", "gobuster", "--address", "10.0.0.1")
	require.NoError(t, err)
	assert.Contains(t, out, "no executions")
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown tool", []string{"--tool", "sqlmap", "--address", "10.0.0.1"}, "tool not found"},
		{"unsupported intensity", []string{"--tool", "gobuster", "--address", "10.0.0.1", "--intensity", "insane"}, "not supported"},
		{"bad intensity", []string{"--tool", "nmap", "--address", "10.0.0.1", "--intensity", "brutal"}, "unknown intensity"},
		{"endpoint without port", []string{"--tool", "nmap", "--address", "10.0.0.1", "--endpoint", "80:/admin"}, "undeclared port"},
		{"malformed endpoint", []string{"--tool", "nmap", "--address", "10.0.0.1", "--endpoint", "/admin"}, "want PORT:PATH"},
		{"bad port", []string{"--tool", "nmap", "--address", "10.0.0.1", "--port", "70000"}, "invalid port"},
		{"bad output", []string{"--tool", "nmap", "--address", "10.0.0.1", "-o", "xml"}, "unknown output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, context.Background(), append([]string{"plan"}, tt.args...)...)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, _, err := run(t, context.Background(), "plan", "--tool", "sqlmap", "--address", "10.0.0.1")
	assert.ErrorIs(t, err, taskforge.ErrToolNotFound)
}

func TestTargetType(t *testing.T) {
	tests := map[string]entity.TargetType{
		"10.0.0.1":           entity.TargetPrivateIP,
		"127.0.0.1":          entity.TargetPrivateIP,
		"8.8.8.8":            entity.TargetPublicIP,
		"10.0.0.0/24":        entity.TargetNetwork,
		"10.0.0.1-10.0.0.20": entity.TargetIPRange,
		"scanme.example.com": entity.TargetDomain,
		"fd00::1":            entity.TargetPrivateIP,
	}
	for addr, want := range tests {
		assert.Equal(t, want, targetType(addr), addr)
	}
}

func TestSubmit_UnknownTargetWithMemoryStore(t *testing.T) {
	_, _, err := run(t, context.Background(),
		"submit", "--project", "p1", "--target", "t1", "--tool", "nmap")
	assert.ErrorIs(t, err, taskforge.ErrTargetNotFound)
}

func TestCancel_ReportsEveryFailure(t *testing.T) {
	_, stderr, err := run(t, context.Background(), "cancel", "e1", "e2")
	assert.ErrorContains(t, err, "2 of 2 execution(s) could not be cancelled")
	assert.Contains(t, stderr, "e1: ")
	assert.Contains(t, stderr, "execution not found")
}

func TestWorker_StopsOnCancel(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := run(t, ctx, "worker")
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_UnknownPool(t *testing.T) {
	_, _, err := run(t, context.Background(), "worker", "--pool", "reports")
	assert.ErrorContains(t, err, `unknown pool "reports"`)
}

func TestHealth_InMemoryStoreIsDegraded(t *testing.T) {
	out, _, err := run(t, context.Background(), "health")
	require.NoError(t, err)

	var s struct {
		Status  string         `json:"status"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "degraded", s.Status)
	assert.Contains(t, s.Details["degraded"], "store")
}
