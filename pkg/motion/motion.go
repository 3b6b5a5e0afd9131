// Package motion defines the motor/servo subsystem boundary the VM drives,
// plus a simulated implementation used for tests, calibration and the
// headless daemon.
package motion

// PenPosition is the servo's pen state.
type PenPosition int

const (
	PenUp PenPosition = iota
	PenDown
)

func (p PenPosition) String() string {
	if p == PenDown {
		return "down"
	}
	return "up"
}

// Callback is a one-shot completion notification. The driver must invoke it
// exactly once per hand-off, after the physical action has finished.
type Callback func()

// Driver abstracts the stepper/servo electronics. Step counts are signed:
// positive advances a wheel forward. tickCount is the number of motor timer
// ticks the movement is spread over; both wheels finish together.
type Driver interface {
	Drive(leftSteps, rightSteps int16, tickCount uint16, done Callback)
	ServoUp(done Callback)
	ServoDown(done Callback)
	PenPosition() PenPosition
	StopMotors()
}
