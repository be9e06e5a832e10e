//go:build linux || darwin

package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

func platformHalt(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "shutdown", "-h", "now")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("shutdown command failed: %w (%s)", err, out)
	}
	return nil
}

func platformEnsurePrivileged() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("must run as root to shut the host down (euid %d)", os.Geteuid())
	}
	return nil
}
