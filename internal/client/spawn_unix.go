//go:build unix

package client

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// startDetached launches the daemon in its own session so it survives
// the short-lived hook process that spawned it.
func (c *Client) startDetached() error {
	path := c.opts.DaemonPath
	if path == "" {
		p, err := exec.LookPath(defaultDaemonBinary)
		if err != nil {
			return fmt.Errorf("locating %s: %w", defaultDaemonBinary, err)
		}
		path = p
	}

	cmd := exec.Command(path, c.opts.DaemonArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if len(c.opts.DaemonEnv) > 0 {
		cmd.Env = append(os.Environ(), c.opts.DaemonEnv...)
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child if this process outlives it; normally the hook exits
	// first and the daemon is reparented to init.
	go func() { _ = cmd.Wait() }()
	return nil
}
