package main

import (
	"errors"

	"github.com/vidslicer/vidslicer/internal/session"
)

// exitTempFail is sysexits' EX_TEMPFAIL: running the command again may work.
const exitTempFail = 75

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}

// sessionFailure turns the status of a failed session step into an error.
// Failures the session marks retryable exit with exitTempFail.
func sessionFailure(snap session.Snapshot) error {
	err := errors.New(snap.Status)
	if snap.Retryable {
		return &exitError{code: exitTempFail, err: err}
	}
	return err
}
