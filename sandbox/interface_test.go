package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRelPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"Simple", "main.py", false},
		{"Nested", "pkg/main.py", false},
		{"DotSlash", "./main.py", false},
		{"InnerDotDot", "pkg/../main.py", false},
		{"Empty", "", true},
		{"Absolute", "/etc/passwd", true},
		{"ParentEscape", "../main.py", true},
		{"DeepEscape", "a/../../main.py", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRelPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNetworkMode(t *testing.T) {
	assert.Equal(t, "bridge", networkMode(true))
	assert.Equal(t, "none", networkMode(false))
}

func TestWrapWithTimeout(t *testing.T) {
	assert.Equal(t,
		"timeout 30 sh -c 'python execution_script.py'",
		wrapWithTimeout("python execution_script.py", 30*time.Second))

	// Sub-second budgets round up so the command still gets a chance to run.
	assert.Equal(t,
		"timeout 1 sh -c 'true'",
		wrapWithTimeout("true", 100*time.Millisecond))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'echo hi'", shellQuote("echo hi"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestRealCommandRunner(t *testing.T) {
	runner := RealCommandRunner{}

	stdout, stderr, exitCode, err := runner.RunCommand(context.Background(), []string{"sh", "-c", "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, 0, exitCode)

	_, _, exitCode, err = runner.RunCommand(context.Background(), []string{"sh", "-c", "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, exitCode)

	_, _, _, err = runner.RunCommand(context.Background(), nil)
	assert.Error(t, err)
}
