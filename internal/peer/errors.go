package peer

import (
	"errors"
	"fmt"

	"github.com/AndreyRyab/mama-talk/internal/signaling"
)

var (
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnexpectedSignal = errors.New("unexpected signal")
	ErrMeshClosed       = errors.New("mesh closed")
	ErrNoOpenChannels   = errors.New("nobody to send to")
)

// Error tags a failure with the operation and the remote member involved.
type Error struct {
	Op      string
	Peer    signaling.ConnID
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Peer != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Peer)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", msg, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, peer signaling.ConnID, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, peer signaling.ConnID, err error, details string) *Error {
	return &Error{Op: op, Peer: peer, Err: err, Details: details}
}
