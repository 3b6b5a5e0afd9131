package compiler

import (
	"fmt"
	"strings"

	"microturtle/pkg/lang"
)

// Error is one positioned compile diagnostic.
type Error struct {
	Line    int
	Col     int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// ErrorList collects every diagnostic found during compilation. No bytecode
// is produced while the list is non-empty.
type ErrorList []Error

func (l *ErrorList) Add(pos lang.Pos, format string, args ...any) {
	*l = append(*l, Error{Line: pos.Line, Col: pos.Col, Message: fmt.Sprintf(format, args...)})
}

func (l ErrorList) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns the list as an error, or nil when it is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
