package dispatch

import (
	"errors"
	"fmt"

	"github.com/voxflow/voxflow/pkg/flow"
)

// ErrCallEnded signals that the call terminated (hangup node, loop guard,
// remote hangup) and the interpreter should unwind without treating the
// handler as failed. Handlers and the engine return errors wrapping this
// sentinel instead of using panics for control flow.
var ErrCallEnded = errors.New("call ended")

// IsControl reports whether err is a control-flow signal rather than a
// handler failure.
func IsControl(err error) bool {
	return errors.Is(err, ErrCallEnded)
}

// UnknownOpcodeError reports an opcode outside the dispatcher's domain.
type UnknownOpcodeError struct {
	Code int
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("dispatch: unknown opcode %d", e.Code)
}

// HandlerFailureError reports that a family handler failed or panicked while
// executing an opcode.
type HandlerFailureError struct {
	Op    flow.Opcode
	Cause error
}

func (e *HandlerFailureError) Error() string {
	return fmt.Sprintf("dispatch: handler for opcode %s failed: %v", e.Op, e.Cause)
}

func (e *HandlerFailureError) Unwrap() error { return e.Cause }
