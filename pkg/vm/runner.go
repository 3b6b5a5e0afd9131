package vm

import (
	"errors"
	"time"
)

// ErrRunnerClosed is returned for requests submitted after Close.
var ErrRunnerClosed = errors.New("runner closed")

// Runner owns a Machine on a single goroutine and gives the hosting firmware
// the cooperative execution model: every instruction re-enters dispatch
// through the runner's event loop (never recursively), motion completions
// arrive as events, and a fixed settle delay separates one physical movement
// from the next opcode. Load/stop/status requests are serialized through the
// same loop, so the machine itself needs no locking.
type Runner struct {
	machine *Machine
	settle  time.Duration

	reqs    chan request
	motionC chan int
	closed  chan struct{}

	// OnStatus, when set before Start, is invoked from the runner goroutine
	// after every state transition (running, idle, error).
	OnStatus func(Status)
}

type reqKind int

const (
	reqLoad reqKind = iota
	reqStop
	reqStatus
)

type request struct {
	kind  reqKind
	prog  *Program
	reply chan Status
	errC  chan error
}

// NewRunner wraps a machine. settle is the pause inserted between a motion
// completion and the next dispatch.
func NewRunner(m *Machine, settle time.Duration) *Runner {
	r := &Runner{
		machine: m,
		settle:  settle,
		reqs:    make(chan request),
		motionC: make(chan int, 1),
		closed:  make(chan struct{}),
	}
	m.SetNotify(func(gen int) {
		select {
		case r.motionC <- gen:
		default:
		}
	})
	return r
}

// Start launches the event loop. Close stops it.
func (r *Runner) Start() {
	go r.loop()
}

// Close shuts the runner down, stopping any running program first.
func (r *Runner) Close() {
	r.Stop()
	close(r.closed)
}

// LoadAndRun submits a program. A nil return means the program passed
// load-time validation and execution has started; a running program is
// stopped first either way.
func (r *Runner) LoadAndRun(p *Program) error {
	req := request{kind: reqLoad, prog: p, errC: make(chan error, 1)}
	select {
	case r.reqs <- req:
		return <-req.errC
	case <-r.closed:
		return ErrRunnerClosed
	}
}

// Stop aborts the current program, if any. Stopping an idle runner is a no-op.
func (r *Runner) Stop() {
	req := request{kind: reqStop, errC: make(chan error, 1)}
	select {
	case r.reqs <- req:
		<-req.errC
	case <-r.closed:
	}
}

// Status reports the machine state.
func (r *Runner) Status() Status {
	req := request{kind: reqStatus, reply: make(chan Status, 1)}
	select {
	case r.reqs <- req:
		return <-req.reply
	case <-r.closed:
		return r.machine.Status()
	}
}

func (r *Runner) loop() {
	var settleC <-chan time.Time
	advance := false // a dispatch is due on this pass

	for {
		if advance {
			// Stay responsive: drain any control traffic before dispatching,
			// then execute exactly one instruction. Long pure-computation
			// programs therefore never monopolize the loop.
			select {
			case req := <-r.reqs:
				advance = r.handle(req, advance)
				if req.kind != reqStatus {
					settleC = nil
				}
				continue
			case <-r.closed:
				return
			default:
			}
			advance = r.dispatch()
			continue
		}

		select {
		case req := <-r.reqs:
			advance = r.handle(req, advance)
			// A load or stop tears the program down; an armed settle timer
			// belongs to it and must not trigger a dispatch afterwards.
			if req.kind != reqStatus {
				settleC = nil
			}
		case gen := <-r.motionC:
			// Motion finished; dispatch resumes after the settle delay.
			if !r.machine.CompleteMotion(gen) {
				continue
			}
			if r.settle > 0 {
				settleC = time.After(r.settle)
			} else {
				advance = true
			}
		case <-settleC:
			settleC = nil
			advance = true
		case <-r.closed:
			return
		}
	}
}

// dispatch runs one instruction and reports whether another dispatch is due.
func (r *Runner) dispatch() bool {
	switch r.machine.Step() {
	case StepContinue:
		return true
	case StepPending:
		return false
	case StepStopped, StepFailed:
		r.notifyStatus()
		return false
	}
	return false
}

func (r *Runner) handle(req request, advance bool) bool {
	switch req.kind {
	case reqLoad:
		err := r.machine.Load(req.prog)
		req.errC <- err
		r.notifyStatus()
		// Discard any stale motion completion from the torn-down program.
		select {
		case <-r.motionC:
		default:
		}
		return err == nil
	case reqStop:
		wasIdle := r.machine.Status().State == StateIdle
		r.machine.Stop()
		req.errC <- nil
		if !wasIdle {
			r.notifyStatus()
		}
		return false
	case reqStatus:
		req.reply <- r.machine.Status()
	}
	return advance
}

func (r *Runner) notifyStatus() {
	if r.OnStatus != nil {
		r.OnStatus(r.machine.Status())
	}
}
