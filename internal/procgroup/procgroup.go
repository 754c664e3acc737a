// SPDX-License-Identifier: MIT

// Package procgroup spawns external processes in their own process group and
// reaps the whole group. The remux executor forks ffmpeg children; killing
// only the parent would leak them.
package procgroup

import (
	"os/exec"
	"time"
)

// Set configures the command to start in a new process group.
// Required for KillGroup to act as a group reaper.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// KillGroup terminates an entire process group: SIGTERM, wait up to grace,
// then SIGKILL. The process must have been spawned with Set.
func KillGroup(pid int, grace time.Duration) error {
	return killGroup(pid, grace)
}
