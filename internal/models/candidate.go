package models

import (
	"fmt"
	"time"
)

// Candidate is a reported detection in the de-dispersed plane.
// It is immutable once built; identity is the (Time, DM) pair.
type Candidate struct {
	// Time is the absolute arrival time of the pulse
	Time time.Time

	// DM is the trial dispersion measure of the detection in pc/cm^3
	DM float64
}

// String renders the candidate for logs and CLI output.
func (c Candidate) String() string {
	return fmt.Sprintf("t=%s DM=%.3f", c.Time.Format(time.RFC3339Nano), c.DM)
}

// CoordMapper converts peak positions in the working image into physical
// (arrival time, DM) coordinates. All search strategies share one mapper
// so the conversion is never duplicated with divergent rounding.
type CoordMapper struct {
	// T0 is the absolute time of column zero
	T0 time.Time

	// DT is the duration of one time sample in seconds
	DT float64

	// DDM is the DM step between consecutive rows
	DDM float64
}

// Candidate maps a (row, col) peak position to a candidate record.
// Positions may be fractional when they come from a model fit.
func (m CoordMapper) Candidate(row, col float64) Candidate {
	return Candidate{
		Time: m.T0.Add(time.Duration(col * m.DT * float64(time.Second))),
		DM:   row * m.DDM,
	}
}

// Position inverts Candidate, recovering the (row, col) peak position.
func (m CoordMapper) Position(c Candidate) (row, col float64) {
	row = c.DM / m.DDM
	col = c.Time.Sub(m.T0).Seconds() / m.DT
	return row, col
}
