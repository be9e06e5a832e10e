// Package shutdown issues the irreversible OS halt. Deliberately blunt: no
// confirmation and no graceful service stop; the countdown already was the
// grace period.
package shutdown

import "context"

// Func is the halt operation. It only returns on failure; on success the OS
// takes the machine down underneath us.
type Func func(ctx context.Context) error

// Halt invokes the platform shutdown facility.
func Halt(ctx context.Context) error {
	return platformHalt(ctx)
}

// EnsurePrivileged verifies that this process is allowed to shut the host
// down, so a misconfigured scheduled task fails at startup instead of at the
// end of a countdown.
func EnsurePrivileged() error {
	return platformEnsurePrivileged()
}
