// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"fmt"
	"time"
)

// Statistics tracks frame counts and error rates on a monitored bus.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	Responses       uint64
	DecodeErrors    uint64
	Anomalies       uint64
	UnknownCommands uint64
	BadLengths      uint64
	BadValues       uint64

	// Per-command tally, keyed by command code
	Commands map[uint8]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		Commands:       make(map[uint8]uint64),
	}
}

// Update folds one received frame into the counters: either a decode
// failure or a decoded message with whatever ValidateMessage found.
func (s *Statistics) Update(m *Message, decodeErr error, anomalies []ValidationError) {
	s.TotalFrames++

	if decodeErr != nil {
		s.DecodeErrors++
		return
	}

	s.Commands[m.Command]++
	if m.Response {
		s.Responses++
	}

	if len(anomalies) > 0 {
		for _, err := range anomalies {
			switch err.Type {
			case AnomalyUnknownCommand:
				s.UnknownCommands++
			case AnomalyBadLength:
				s.BadLengths++
			case AnomalyBadValue:
				s.BadValues++
			}
			s.Anomalies++
		}
	} else {
		s.ValidFrames++
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and error rates since StartTime.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.DecodeErrors+s.Anomalies) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, decodeErrorPercent, anomalyPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		decodeErrorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
		anomalyPercent = float64(s.Anomalies) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Track Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("Responses:       %8d\n", s.Responses)

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, decodeErrorPercent)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d (%.1f%%)\n", s.Anomalies, anomalyPercent)
		if s.UnknownCommands > 0 {
			result += fmt.Sprintf("  Unknown Commands: %5d\n", s.UnknownCommands)
		}
		if s.BadLengths > 0 {
			result += fmt.Sprintf("  Bad Lengths:      %5d\n", s.BadLengths)
		}
		if s.BadValues > 0 {
			result += fmt.Sprintf("  Bad Values:       %5d\n", s.BadValues)
		}
	}

	if len(s.Commands) > 0 {
		result += "Commands:\n"
		for code := 0; code < 256; code++ {
			if count, ok := s.Commands[uint8(code)]; ok {
				result += fmt.Sprintf("  %-12s (0x%02X): %6d\n", CommandName(uint8(code)), code, count)
			}
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters.
func (s *Statistics) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalFrames = 0
	s.ValidFrames = 0
	s.Responses = 0
	s.DecodeErrors = 0
	s.Anomalies = 0
	s.UnknownCommands = 0
	s.BadLengths = 0
	s.BadValues = 0
	s.Commands = make(map[uint8]uint64)
	s.FrameRate = 0
	s.ErrorRate = 0
}
