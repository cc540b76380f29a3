// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureRecord is one observed frame in a capture stream. Records are
// CBOR maps with integer keys, concatenated; long recordings stay small
// and a reader can stop anywhere between records.
type CaptureRecord struct {
	At     int64  `cbor:"1,keyasint"` // unix milliseconds
	ID     uint32 `cbor:"2,keyasint"`
	Length uint8  `cbor:"3,keyasint"`
	Data   []byte `cbor:"4,keyasint"`
}

var (
	captureEnc cbor.EncMode
	captureDec cbor.DecMode
)

func init() {
	var err error
	captureEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	captureDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// CaptureWriter streams observed frames into a capture.
type CaptureWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewCaptureWriter starts a capture stream on w.
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: captureEnc.NewEncoder(w)}
}

// Add appends one frame observed at time at.
func (cw *CaptureWriter) Add(f Frame, at time.Time) error {
	if f.Length > MaxDataLen {
		return fmt.Errorf("frame length %d exceeds %d data bytes", f.Length, MaxDataLen)
	}
	rec := CaptureRecord{
		At:     at.UnixMilli(),
		ID:     f.ID,
		Length: f.Length,
		Data:   append([]byte(nil), f.Data[:f.Length]...),
	}
	if err := cw.enc.Encode(rec); err != nil {
		return err
	}
	cw.count++
	return nil
}

// Count returns the number of records written so far.
func (cw *CaptureWriter) Count() int {
	return cw.count
}

// ReadCapture reads a whole capture stream.
func ReadCapture(r io.Reader) ([]CaptureRecord, error) {
	dec := captureDec.NewDecoder(r)
	var records []CaptureRecord
	for {
		var rec CaptureRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("capture record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// Time returns the observation instant.
func (r CaptureRecord) Time() time.Time {
	return time.UnixMilli(r.At)
}

// Frame rebuilds the bus frame. A record claiming more data than a frame
// holds comes back with its length intact so MessageFromFrame rejects it.
func (r CaptureRecord) Frame() Frame {
	f := Frame{ID: r.ID, Extended: true, Length: r.Length}
	n := len(r.Data)
	if n > MaxDataLen {
		n = MaxDataLen
	}
	copy(f.Data[:], r.Data[:n])
	return f
}
