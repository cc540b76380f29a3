// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import "time"

// Clock is the time source behind settle delays and exchange deadlines.
// Tests substitute one whose Sleep advances Now, which collapses every
// wait loop to instant.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
