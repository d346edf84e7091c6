package config_test

import (
	"os"
	"os/exec"
	"testing"

	"github.com/louisbranch/euroturn/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExitWithCode runs the exit helpers in a subprocess because os.Exit
// cannot be intercepted in-process.
func TestExitWithCode(t *testing.T) {
	switch os.Getenv("TEST_EXIT_SUBPROCESS") {
	case "exitf":
		config.Exitf("fatal: %s", "something broke")
		return
	case "code":
		config.ExitWithCode(4, "content failed: %s", "retry the same command")
		return
	}

	tests := []struct {
		mode     string
		wantCode int
		wantOut  string
	}{
		{mode: "exitf", wantCode: 1, wantOut: "fatal: something broke"},
		{mode: "code", wantCode: 4, wantOut: "content failed: retry the same command"},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestExitWithCode$")
			cmd.Env = append(os.Environ(), "TEST_EXIT_SUBPROCESS="+tc.mode)

			out, err := cmd.CombinedOutput()

			exitErr, ok := err.(*exec.ExitError)
			require.Truef(t, ok, "expected *exec.ExitError, got %T: %v", err, err)
			assert.Equal(t, tc.wantCode, exitErr.ExitCode())
			assert.Contains(t, string(out), tc.wantOut)
		})
	}
}
