//go:build windows

package shutdown

import (
	"context"
	"fmt"
	"os/exec"
)

func platformHalt(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "shutdown", "/s", "/t", "0", "/f")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("shutdown command failed: %w (%s)", err, out)
	}
	return nil
}

func platformEnsurePrivileged() error {
	// "net session" succeeds only in an elevated context.
	if err := exec.Command("net", "session").Run(); err != nil {
		return fmt.Errorf("must run elevated to shut the host down: %w", err)
	}
	return nil
}
