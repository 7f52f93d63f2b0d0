package bridge

import (
	"errors"
	"fmt"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

var (
	// ErrNotConnected is returned for operations attempted without a
	// live session. Fatal transport failures also collapse to this for
	// every subsequent call until a fresh connect.
	ErrNotConnected = errors.New("not connected to JDWP target. Use jdwp_connect first")

	// ErrThreadNotSuspended is returned when stack introspection or
	// invocation is attempted on a running thread.
	ErrThreadNotSuspended = errors.New("thread is not suspended. Thread must be stopped at a breakpoint")

	// ErrInvalidFrame is returned for a frame index that is out of
	// range or has been invalidated by a resume.
	ErrInvalidFrame = errors.New("invalid frame index")

	// ErrAmbiguousMethod is returned when a method name resolves to
	// more than one overload on the receiver's type.
	ErrAmbiguousMethod = errors.New("method name is ambiguous (overloaded)")
)

// TargetException reports that the invoked method threw inside the
// target VM. The thrown object is rendered with the usual value rules.
type TargetException struct {
	Rendered string
}

func (e *TargetException) Error() string {
	return "target threw " + e.Rendered
}

// translateErr maps transport and protocol errors onto the bridge
// taxonomy. Command-level rejections stay recoverable; connection-level
// failures become ErrNotConnected after the session marks itself closed.
func translateErr(err error) error {
	var cmdErr *jdwp.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case jdwp.ErrCodeThreadNotSuspended:
			return ErrThreadNotSuspended
		case jdwp.ErrCodeInvalidFrameID:
			return ErrInvalidFrame
		case jdwp.ErrCodeVMDead:
			return ErrNotConnected
		}
		return fmt.Errorf("protocol error: %w", cmdErr)
	}
	if errors.Is(err, jdwp.ErrConnectionClosed) || errors.Is(err, jdwp.ErrMalformedPacket) {
		return ErrNotConnected
	}
	return err
}

// recoverable reports whether the session stays usable after err.
func recoverable(err error) bool {
	if errors.Is(err, ErrNotConnected) {
		return false
	}
	if errors.Is(err, jdwp.ErrConnectionClosed) || errors.Is(err, jdwp.ErrMalformedPacket) {
		return false
	}
	return true
}
