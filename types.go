// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"math"
	"strings"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

const (
	// FormatEDFPlusContinuous marks a continuous EDF+ recording in the
	// header's reserved field.
	FormatEDFPlusContinuous = "EDF+C"
	// FormatEDFPlusDiscontinuous marks a discontinuous EDF+ recording.
	FormatEDFPlusDiscontinuous = "EDF+D"

	// AnnotationLabel is the signal label that designates the EDF+
	// annotation channel.
	AnnotationLabel = "EDF Annotations"
)

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	Reserved           string        // Format marker ("EDF+C"/"EDF+D" for EDF+, empty for plain EDF)
	DataRecordDuration time.Duration // Duration of a single data record
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// IsEDFPlus reports whether the header carries an EDF+ format marker.
func (h *Header) IsEDFPlus() bool {
	return strings.HasPrefix(h.Reserved, FormatEDFPlusContinuous) ||
		strings.HasPrefix(h.Reserved, FormatEDFPlusDiscontinuous)
}

// Continuous reports whether the recording is continuous. Plain EDF
// files are always continuous.
func (h *Header) Continuous() bool {
	return !strings.HasPrefix(h.Reserved, FormatEDFPlusDiscontinuous)
}

// AnnotationSignal returns the index of the annotation channel, or -1
// if the header declares none.
func (h *Header) AnnotationSignal() int {
	for i := range h.Signals {
		if h.Signals[i].IsAnnotation() {
			return i
		}
	}
	return -1
}

// RecordSize returns the byte length of one data record, fully
// determined by the declared samples per record of every signal.
func (h *Header) RecordSize() int {
	return recordSize(h.Signals)
}

func (h *Header) validateSignals() error {
	for i := range h.Signals {
		if err := h.Signals[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// IsAnnotation reports whether the signal is the EDF+ annotation
// channel. Annotation channels are excluded from ordinary sample
// decoding; their bytes carry TALs instead.
func (s *Signal) IsAnnotation() bool {
	return strings.TrimSpace(s.Label) == AnnotationLabel
}

// Validate rejects digital or physical ranges that are equal or
// inverted, which would make the digital to physical map singular.
func (s *Signal) Validate() error {
	if s.DigitalMin >= s.DigitalMax {
		return &RangeError{Label: s.Label, Kind: "digital", Min: float64(s.DigitalMin), Max: float64(s.DigitalMax)}
	}
	if s.PhysicalMin >= s.PhysicalMax {
		return &RangeError{Label: s.Label, Kind: "physical", Min: s.PhysicalMin, Max: s.PhysicalMax}
	}
	return nil
}

// calibration is the precomputed affine map between digital and
// physical units for one signal. Computing it once per signal avoids
// re-deriving gain and offset for every sample in a record.
type calibration struct {
	gain   float64
	offset float64
	dmin   float64
	dmax   float64
}

func (s *Signal) calibration() calibration {
	gain := (s.PhysicalMax - s.PhysicalMin) / float64(s.DigitalMax-s.DigitalMin)
	return calibration{
		gain:   gain,
		offset: s.PhysicalMin - gain*float64(s.DigitalMin),
		dmin:   float64(s.DigitalMin),
		dmax:   float64(s.DigitalMax),
	}
}

func (c calibration) physical(digital int16) float64 {
	return c.gain*float64(digital) + c.offset
}

// digital inverts the affine map, rounding half to even and clamping
// into the declared digital range. Clamping keeps floating rounding at
// the physical boundary from aborting a write.
func (c calibration) digital(physical float64) int16 {
	d := math.RoundToEven((physical - c.offset) / c.gain)
	if d < c.dmin {
		d = c.dmin
	}
	if d > c.dmax {
		d = c.dmax
	}
	return int16(d)
}

// ToPhysical converts a digital sample value to physical units using
// the signal's calibration.
func (s *Signal) ToPhysical(digital int16) float64 {
	return s.calibration().physical(digital)
}

// ToDigital converts a physical value to the nearest in-range digital
// sample value.
func (s *Signal) ToDigital(physical float64) int16 {
	return s.calibration().digital(physical)
}

// Annotation is a single time-stamped annotation from an EDF+
// annotation channel.
type Annotation struct {
	Onset       float64 // Onset in seconds relative to the recording start
	Duration    float64 // Duration in seconds, meaningful only if HasDuration
	HasDuration bool    // Whether the annotation carries a duration
	Text        string  // Annotation text
}

// Record is one decoded data record: a single time slice of physical
// samples for every ordinary signal, plus any annotations carried by
// the record's annotation channel. Samples is indexed by signal in
// declaration order; the entry for an annotation channel is nil.
type Record struct {
	Samples     [][]float64
	Annotations []Annotation
}
