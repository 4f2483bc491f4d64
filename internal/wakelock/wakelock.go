// Package wakelock keeps the display awake by holding a systemd-inhibit
// process for as long as the lock is held.
package wakelock

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/procgroup"
)

// ErrExited is returned by Release when the inhibitor died on its own.
var ErrExited = errors.New("wakelock: inhibitor exited early")

const releaseGrace = time.Second

// DefaultCommand is the inhibitor invocation.
var DefaultCommand = []string{
	"systemd-inhibit",
	"--what=idle:sleep",
	"--who=liveplay",
	"--why=live playback",
	"--mode=block",
	"sleep", "infinity",
}

// Inhibitor holds a wake lock through a child process.
type Inhibitor struct {
	argv   []string
	logger zerolog.Logger

	mu   sync.Mutex
	proc *procgroup.Process
}

// New returns an inhibitor running argv, or DefaultCommand when empty.
func New(argv ...string) *Inhibitor {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	return &Inhibitor{argv: argv, logger: log.WithComponent("wakelock")}
}

// Held reports whether the inhibitor process is running.
func (i *Inhibitor) Held() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.proc == nil {
		return false
	}
	select {
	case <-i.proc.Done():
		return false
	default:
		return true
	}
}

// Acquire starts the inhibitor. Acquiring a held lock is a no-op.
func (i *Inhibitor) Acquire() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.proc != nil {
		return nil
	}
	if _, err := exec.LookPath(i.argv[0]); err != nil {
		return fmt.Errorf("wakelock: %w", err)
	}
	proc, err := procgroup.Start(exec.Command(i.argv[0], i.argv[1:]...))
	if err != nil {
		return fmt.Errorf("wakelock: %w", err)
	}
	i.proc = proc
	i.logger.Debug().Int("pid", proc.Pid()).Str(log.FieldEvent, "wakelock.acquired").Msg("wake lock acquired")
	return nil
}

// Release stops the inhibitor. Releasing a free lock is a no-op.
func (i *Inhibitor) Release() error {
	i.mu.Lock()
	proc := i.proc
	i.proc = nil
	i.mu.Unlock()
	if proc == nil {
		return nil
	}

	select {
	case <-proc.Done():
		return fmt.Errorf("%w: %v", ErrExited, proc.Err())
	default:
	}
	// The process is expected to die from our signal, so its exit error is
	// not interesting.
	_ = proc.Stop(releaseGrace)
	i.logger.Debug().Str(log.FieldEvent, "wakelock.released").Msg("wake lock released")
	return nil
}
