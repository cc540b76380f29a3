// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import "errors"

// Bus moves raw frames to and from the track hardware. Implementations
// buffer inbound traffic so Receive can poll without blocking.
type Bus interface {
	// Send queues one frame for transmit. An error is a hard transport
	// fault; the controller treats it as unrecoverable.
	Send(f Frame) error

	// Receive polls for one buffered inbound frame. ok reports whether a
	// frame was pending; err reports transport failure, not emptiness.
	Receive() (f Frame, ok bool, err error)

	Close() error
}

// ErrClosed reports use of a bus after Close.
var ErrClosed = errors.New("bus closed")
