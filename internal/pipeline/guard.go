// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
)

// Resetter restores the given paths to their committed content. Satisfied
// by *gitrepo.Repo.
type Resetter interface {
	Reset(paths []string) error
}

// Guard reverts bumped files to their committed content if the process is
// interrupted before the release commit lands. It is strictly best-effort
// cleanup: restore failures are logged and never escalate.
type Guard struct {
	files  []string
	git    Resetter
	sigs   chan os.Signal
	done   chan struct{}
	logger *log.Logger
	once   sync.Once
}

// Arm installs signal handlers that check out the given files from HEAD on
// SIGINT/SIGTERM. The caller guarantees a clean work tree when arming, so
// HEAD content equals pre-bump content. The caller must Disarm once the
// release commit records the bump.
func Arm(files []string, git Resetter, logger *log.Logger) *Guard {
	g := &Guard{
		files:  files,
		git:    git,
		sigs:   make(chan os.Signal, 1),
		done:   make(chan struct{}),
		logger: logger,
	}

	signal.Notify(g.sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-g.sigs:
			g.logger.Warn("interrupted, reverting bumped files")
			g.restore()
			os.Exit(1)
		case <-g.done:
		}
	}()

	return g
}

// Abort restores the files immediately. Used on failure paths that leave
// the bump window without committing.
func (g *Guard) Abort() {
	g.restore()
	g.Disarm()
}

// Disarm closes the guard window without restoring.
func (g *Guard) Disarm() {
	g.once.Do(func() {
		signal.Stop(g.sigs)
		close(g.done)
	})
}

func (g *Guard) restore() {
	if err := g.git.Reset(g.files); err != nil {
		g.logger.Warn("failed to revert bumped files", "error", err)
	}
}
