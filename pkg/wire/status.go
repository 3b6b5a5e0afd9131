package wire

import (
	"encoding/json"

	"microturtle/pkg/motion"
	"microturtle/pkg/vm"
)

// statusEnvelope is the notification sent whenever program execution changes
// state. Function and Index are reported only while running.
type statusEnvelope struct {
	Program statusBody `json:"program"`
}

type statusBody struct {
	Status   string `json:"status"`
	Function *int   `json:"function,omitempty"`
	Index    *int   `json:"index,omitempty"`
}

// servoEnvelope reports pen movements to listeners.
type servoEnvelope struct {
	Servo servoBody `json:"servo"`
}

type servoBody struct {
	Position string `json:"position"`
}

// EncodeStatus renders a machine status notification.
func EncodeStatus(st vm.Status) []byte {
	body := statusBody{Status: st.State.String()}
	if st.State == vm.StateRunning {
		fn, idx := st.Function, st.Index
		body.Function = &fn
		body.Index = &idx
	}
	data, _ := json.Marshal(statusEnvelope{Program: body})
	return data
}

// EncodePenPosition renders a servo position notification.
func EncodePenPosition(pos motion.PenPosition) []byte {
	body := servoBody{Position: "up"}
	if pos == motion.PenDown {
		body.Position = "down"
	}
	data, _ := json.Marshal(servoEnvelope{Servo: body})
	return data
}
