// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"fmt"
	"io"
)

// Tracer receives the controller's wire diagnostics: every transmit,
// every decoded receive, and fault events.
type Tracer interface {
	Send(m Message)
	Recv(m Message)
	Fault(msg string)
}

// NopTracer discards all trace output. It is the default.
type NopTracer struct{}

func (NopTracer) Send(Message) {}

func (NopTracer) Recv(Message) {}

func (NopTracer) Fault(string) {}

var _ Tracer = NopTracer{}

// writerTracer prints the classic three-prefix stream: "==> " for
// transmits, "<== " for receives, "!!! " for faults.
type writerTracer struct {
	w io.Writer
}

// NewWriterTracer returns a Tracer writing one line per event to w.
func NewWriterTracer(w io.Writer) Tracer {
	return &writerTracer{w: w}
}

func (t *writerTracer) Send(m Message) {
	fmt.Fprintf(t.w, "==> %s\n", m)
}

func (t *writerTracer) Recv(m Message) {
	fmt.Fprintf(t.w, "<== %s\n", m)
}

func (t *writerTracer) Fault(msg string) {
	fmt.Fprintf(t.w, "!!! %s\n", msg)
}

var _ Tracer = (*writerTracer)(nil)
