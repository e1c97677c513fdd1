package doctor

import (
	"encoding/json"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "x", Status: StatusWarn, Message: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","status":"warn","message":"m"}`, string(data))
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	result   CheckResult
}

func (m *mockCheck) Name() string     { return m.name }
func (m *mockCheck) Category() string { return m.category }
func (m *mockCheck) Run() CheckResult { return m.result }

func sampleChecks() []Check {
	return []Check{
		&mockCheck{name: "a", category: CategoryConfig, result: CheckResult{Name: "a", Status: StatusPass}},
		&mockCheck{name: "b", category: CategorySSH, result: CheckResult{Name: "b", Status: StatusFail}},
		&mockCheck{name: "c", category: CategorySSH, result: CheckResult{Name: "c", Status: StatusWarn}},
	}
}

func TestRunAll(t *testing.T) {
	results := RunAll(sampleChecks())
	require.Len(t, results, 3)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusFail, results[1].Status)
}

func TestRunAllParallel_PreservesOrder(t *testing.T) {
	results := RunAllParallel(sampleChecks())
	require.Len(t, results, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, results[i].Name)
	}
}

func TestCountsAndSummary(t *testing.T) {
	results := RunAll(sampleChecks())

	counts := CountByStatus(results)
	assert.Equal(t, 1, counts[StatusPass])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 1, counts[StatusFail])

	assert.True(t, HasFailures(results))
	assert.True(t, HasIssues(results))
	assert.Equal(t, "2 issues found", Summary(results))

	clean := []CheckResult{{Status: StatusPass}}
	assert.False(t, HasFailures(clean))
	assert.False(t, HasIssues(clean))
	assert.Equal(t, "Everything looks good", Summary(clean))

	assert.Equal(t, "1 issue found", Summary([]CheckResult{{Status: StatusWarn}}))
}

func TestNewChecks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Shell.Path = "/nonexistent/bash"

	var names []string
	for _, c := range NewChecks("", cfg) {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{
		"config_file", "config_schema",
		"shell_binary",
		"ssh_key", "ssh_agent", "ssh_key_permissions", "ssh_config", "known_hosts",
	}, names)
}
