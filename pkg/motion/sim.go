package motion

import (
	"math"
	"sync"
)

// Segment is one recorded movement of the simulated robot. Coordinates are in
// length units (the same units FD/BK take); Y grows forward from the start
// pose. PenDown marks segments that would leave ink.
type Segment struct {
	X1, Y1  float64
	X2, Y2  float64
	PenDown bool
}

// Simulator is an in-memory Driver that integrates wheel steps into a robot
// pose and records the pen trace. It is safe for use from the runner
// goroutine plus a reader; completions fire synchronously by default or on a
// caller-supplied defer hook.
type Simulator struct {
	mu sync.Mutex

	straightSteps float64 // steps per 100 length units
	turnSteps     float64 // steps per 90 degrees

	x, y    float64
	heading float64 // radians, 0 = +Y, clockwise positive
	pen     PenPosition

	trace    []Segment
	drives   int
	servoOps int
	stops    int

	// Complete, when set, receives each completion callback instead of it
	// being invoked synchronously. Used to exercise asynchronous hand-offs.
	Complete func(Callback)
}

// NewSimulator builds a simulator using the same calibration the machine
// scales with, so traces come out in geometric units again.
func NewSimulator(straightSteps, turnSteps int32) *Simulator {
	return &Simulator{
		straightSteps: float64(straightSteps),
		turnSteps:     float64(turnSteps),
		pen:           PenUp,
	}
}

func (s *Simulator) Drive(left, right int16, tickCount uint16, done Callback) {
	s.mu.Lock()
	s.drives++
	l := float64(left)
	r := float64(right)

	// Decompose differential drive into a straight component and a rotation.
	forward := (l + r) / 2
	twist := (l - r) / 2

	if s.turnSteps > 0 {
		s.heading += twist / s.turnSteps * math.Pi / 2
	}
	if s.straightSteps > 0 && forward != 0 {
		dist := forward / s.straightSteps * 100
		nx := s.x + dist*math.Sin(s.heading)
		ny := s.y + dist*math.Cos(s.heading)
		s.trace = append(s.trace, Segment{
			X1: s.x, Y1: s.y, X2: nx, Y2: ny,
			PenDown: s.pen == PenDown,
		})
		s.x, s.y = nx, ny
	}
	s.mu.Unlock()
	s.complete(done)
}

func (s *Simulator) ServoUp(done Callback) {
	s.mu.Lock()
	s.servoOps++
	s.pen = PenUp
	s.mu.Unlock()
	s.complete(done)
}

func (s *Simulator) ServoDown(done Callback) {
	s.mu.Lock()
	s.servoOps++
	s.pen = PenDown
	s.mu.Unlock()
	s.complete(done)
}

func (s *Simulator) PenPosition() PenPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pen
}

func (s *Simulator) StopMotors() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *Simulator) complete(done Callback) {
	if done == nil {
		return
	}
	if s.Complete != nil {
		s.Complete(done)
		return
	}
	done()
}

// Pose returns the simulated position and heading in degrees.
func (s *Simulator) Pose() (x, y, headingDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y, s.heading * 180 / math.Pi
}

// Trace returns a copy of the recorded segments.
func (s *Simulator) Trace() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Segment, len(s.trace))
	copy(out, s.trace)
	return out
}

// DriveCount reports how many Drive hand-offs the simulator has received.
func (s *Simulator) DriveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drives
}

// ServoCount reports how many servo hand-offs the simulator has received.
func (s *Simulator) ServoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servoOps
}

// StopCount reports how many times the motors were explicitly stopped.
func (s *Simulator) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
