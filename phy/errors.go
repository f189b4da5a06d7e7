package phy

import "errors"

var (
	// ErrCannotSendEmpty is returned when trying to send an empty frame.
	ErrCannotSendEmpty = errors.New("cannot send empty frame")
)
