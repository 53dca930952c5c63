//go:build windows

package git

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
