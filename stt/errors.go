package stt

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Op names the stage of a backend call that failed.
type Op string

const (
	OpDial       Op = "dial"
	OpOpen       Op = "open"
	OpSend       Op = "send"
	OpRecv       Op = "recv"
	OpTranscribe Op = "transcribe"
)

// BackendError is returned by recognizers for any failure of the remote
// service: auth, quota, network or an aborted stream.
type BackendError struct {
	Backend string
	Op      Op
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("stt %s %s: %s", e.Backend, e.Op, e.Description())
}

func (e *BackendError) Unwrap() error { return e.Err }

// Description is the client-facing text for the failure.
func (e *BackendError) Description() string {
	return Describe(e.Err)
}

// Code returns the gRPC status code of the failure, codes.Unknown for
// errors that do not carry one.
func (e *BackendError) Code() codes.Code {
	return status.Code(errors.Cause(e.Err))
}

// Describe renders err as "<Code>: <message>" for gRPC status errors and as
// its plain message otherwise.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if s, ok := status.FromError(errors.Cause(err)); ok && s.Code() != codes.OK {
		return fmt.Sprintf("%s: %s", s.Code(), s.Message())
	}
	return err.Error()
}

func newBackendError(backend string, op Op, err error) *BackendError {
	var berr *BackendError
	if errors.As(err, &berr) {
		return berr
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}
