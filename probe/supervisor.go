package probe

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/wricardo/wsprobe/shutdown"
)

// Task is a session body run under a Supervisor.
type Task func(sig *shutdown.Signal) error

// Supervisor runs one session task next to a watchdog that turns external
// interrupts into a shutdown request.
type Supervisor struct {
	Signal     *shutdown.Signal
	Interrupts <-chan os.Signal
	Log        zerolog.Logger
}

// Run starts task and the watchdog and returns once both have finished. The
// task is never cancelled preemptively; it winds down on its own signal
// checks. The task's error is returned. A panic in either goroutine still
// sets the signal before it is re-raised here.
func (s *Supervisor) Run(task Task) error {
	var (
		wg      conc.WaitGroup
		taskErr error
	)

	wg.Go(func() {
		defer s.Signal.Set()
		taskErr = task(s.Signal)
	})

	wg.Go(func() {
		defer s.Signal.Set()
		s.watchdog()
	})

	wg.Wait()
	return taskErr
}

// watchdog returns when the signal is set, setting it itself on interrupt.
func (s *Supervisor) watchdog() {
	select {
	case <-s.Signal.Done():
	case sig, ok := <-s.Interrupts:
		if ok {
			s.Log.Warn().Str("signal", sig.String()).Msg("interrupt received, shutting down")
		}
	}
}
