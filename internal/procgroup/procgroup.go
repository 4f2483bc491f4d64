// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs helper processes in their own process group so the
// whole tree can be stopped together.
package procgroup

import (
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Process is a started command running as a process group leader.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	stopOnce sync.Once
	stopErr  error
}

// Start sets up cmd as a group leader and starts it.
func Start(cmd *exec.Cmd) (*Process, error) {
	Set(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("procgroup: start %s: %w", cmd.Path, err)
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid is the process id, which is also the process group id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err is the exit error. Valid once Done is closed.
func (p *Process) Err() error {
	<-p.done
	return p.err
}

// Stop terminates the group, escalating to SIGKILL after grace, and waits
// for the exit. Only the first call signals; later calls return its result.
func (p *Process) Stop(grace time.Duration) error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		waitCh := make(chan error, 1)
		go func() {
			<-p.done
			waitCh <- p.err
		}()
		p.stopErr = Terminate(p.cmd, waitCh, grace)
	})
	<-p.done
	return p.stopErr
}
