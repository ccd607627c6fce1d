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
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// headerSize is the fixed size of the main header record.
	headerSize = 256
	// signalHeaderSize is the per-signal size of the signal header block.
	signalHeaderSize = 256
	// maxRecordBytes is the largest data record size recommended by the
	// EDF standard.
	maxRecordBytes = 61440
)

const (
	startDateLayout = "02.01.06"
	startTimeLayout = "15.04.05"
)

// parseHeader decodes the main header and the signal header block from
// b, which must hold at least 256 + 256*S bytes.
func parseHeader(b []byte) (*Header, error) {
	if len(b) < headerSize {
		return nil, &MalformedHeaderError{
			Offset: 0,
			Field:  "header",
			Reason: fmt.Sprintf("have %d bytes, need at least %d", len(b), headerSize),
		}
	}

	hdr := &Header{}
	hdr.Version = Version(trimField(b, 0, 8))
	hdr.PatientID = trimField(b, 8, 80)
	hdr.RecordingID = trimField(b, 88, 80)

	startDate, err := time.Parse(startDateLayout, trimField(b, 168, 8))
	if err != nil {
		return nil, &MalformedHeaderError{Offset: 168, Field: "start date", Reason: err.Error()}
	}
	startTime, err := time.Parse(startTimeLayout, trimField(b, 176, 8))
	if err != nil {
		return nil, &MalformedHeaderError{Offset: 176, Field: "start time", Reason: err.Error()}
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = parseHeaderInt(b, 184, 8, "header byte count"); err != nil {
		return nil, err
	}
	hdr.Reserved = trimField(b, 192, 44)
	if hdr.DataRecords, err = parseHeaderInt(b, 236, 8, "number of data records"); err != nil {
		return nil, err
	}
	seconds, err := parseHeaderFloat(b, 244, 8, "data record duration")
	if err != nil {
		return nil, err
	}
	if seconds < 0 {
		return nil, &MalformedHeaderError{Offset: 244, Field: "data record duration", Reason: "negative duration"}
	}
	hdr.DataRecordDuration = time.Duration(seconds * float64(time.Second))

	if hdr.SignalCount, err = parseHeaderInt(b, 252, 4, "number of signals"); err != nil {
		return nil, err
	}
	if hdr.SignalCount < 0 {
		return nil, &MalformedHeaderError{Offset: 252, Field: "number of signals", Reason: "negative signal count"}
	}
	if len(b) < headerSize+hdr.SignalCount*signalHeaderSize {
		return nil, &MalformedHeaderError{
			Offset: 252,
			Field:  "number of signals",
			Reason: fmt.Sprintf("%d signals need %d header bytes, have %d", hdr.SignalCount, headerSize+hdr.SignalCount*signalHeaderSize, len(b)),
		}
	}

	// The signal header block is columnar: all labels first, then all
	// transducer types, and so on for each field in turn.
	hdr.Signals = make([]Signal, hdr.SignalCount)
	off := headerSize
	for i := range hdr.Signals {
		hdr.Signals[i].Label = trimField(b, off, 16)
		off += 16
	}
	for i := range hdr.Signals {
		hdr.Signals[i].TransducerType = trimField(b, off, 80)
		off += 80
	}
	for i := range hdr.Signals {
		hdr.Signals[i].PhysicalDimension = trimField(b, off, 8)
		off += 8
	}
	for i := range hdr.Signals {
		if hdr.Signals[i].PhysicalMin, err = parseHeaderFloat(b, off, 8, signalField("physical minimum", i)); err != nil {
			return nil, err
		}
		off += 8
	}
	for i := range hdr.Signals {
		if hdr.Signals[i].PhysicalMax, err = parseHeaderFloat(b, off, 8, signalField("physical maximum", i)); err != nil {
			return nil, err
		}
		off += 8
	}
	for i := range hdr.Signals {
		if hdr.Signals[i].DigitalMin, err = parseHeaderInt(b, off, 8, signalField("digital minimum", i)); err != nil {
			return nil, err
		}
		off += 8
	}
	for i := range hdr.Signals {
		if hdr.Signals[i].DigitalMax, err = parseHeaderInt(b, off, 8, signalField("digital maximum", i)); err != nil {
			return nil, err
		}
		off += 8
	}
	for i := range hdr.Signals {
		hdr.Signals[i].Prefiltering = trimField(b, off, 80)
		off += 80
	}
	for i := range hdr.Signals {
		if hdr.Signals[i].SamplesPerRecord, err = parseHeaderInt(b, off, 8, signalField("samples per record", i)); err != nil {
			return nil, err
		}
		off += 8
	}
	for i := range hdr.Signals {
		hdr.Signals[i].Reserved = trimField(b, off, 32)
		off += 32
	}

	return hdr, nil
}

// encodeHeader serializes the header and its signal block into the
// fixed-width layout mandated by the standard. Values that do not fit
// their field width fail with FieldOverflowError.
func encodeHeader(hdr *Header) ([]byte, error) {
	buf := make([]byte, 0, headerSize+len(hdr.Signals)*signalHeaderSize)

	var err error
	if buf, err = appendField(buf, "version", string(hdr.Version), 8); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "patient id", hdr.PatientID, 80); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "recording id", hdr.RecordingID, 80); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "start date", hdr.StartTime.Format(startDateLayout), 8); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "start time", hdr.StartTime.Format(startTimeLayout), 8); err != nil {
		return nil, err
	}
	headerBytes := headerSize + len(hdr.Signals)*signalHeaderSize
	if buf, err = appendField(buf, "header byte count", strconv.Itoa(headerBytes), 8); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "reserved", hdr.Reserved, 44); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "number of data records", strconv.Itoa(hdr.DataRecords), 8); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "data record duration", formatDecimal(hdr.DataRecordDuration.Seconds()), 8); err != nil {
		return nil, err
	}
	if buf, err = appendField(buf, "number of signals", strconv.Itoa(len(hdr.Signals)), 4); err != nil {
		return nil, err
	}

	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("label", i), hdr.Signals[i].Label, 16); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("transducer type", i), hdr.Signals[i].TransducerType, 80); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("physical dimension", i), hdr.Signals[i].PhysicalDimension, 8); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("physical minimum", i), formatDecimal(hdr.Signals[i].PhysicalMin), 8); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("physical maximum", i), formatDecimal(hdr.Signals[i].PhysicalMax), 8); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("digital minimum", i), strconv.Itoa(hdr.Signals[i].DigitalMin), 8); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("digital maximum", i), strconv.Itoa(hdr.Signals[i].DigitalMax), 8); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("prefiltering", i), hdr.Signals[i].Prefiltering, 80); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("samples per record", i), strconv.Itoa(hdr.Signals[i].SamplesPerRecord), 8); err != nil {
			return nil, err
		}
	}
	for i := range hdr.Signals {
		if buf, err = appendField(buf, signalField("reserved", i), hdr.Signals[i].Reserved, 32); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func trimField(b []byte, off, width int) string {
	return strings.TrimSpace(string(b[off : off+width]))
}

func parseHeaderInt(b []byte, off, width int, field string) (int, error) {
	n, err := strconv.Atoi(trimField(b, off, width))
	if err != nil {
		return 0, &MalformedHeaderError{Offset: off, Field: field, Reason: err.Error()}
	}
	return n, nil
}

func parseHeaderFloat(b []byte, off, width int, field string) (float64, error) {
	f, err := strconv.ParseFloat(trimField(b, off, width), 64)
	if err != nil {
		return 0, &MalformedHeaderError{Offset: off, Field: field, Reason: err.Error()}
	}
	return f, nil
}

// appendField appends value left-justified and space-padded to width
// bytes. A value longer than the field width is an error, never a
// silent truncation.
func appendField(buf []byte, field, value string, width int) ([]byte, error) {
	if len(value) > width {
		return nil, &FieldOverflowError{Field: field, Value: value, Width: width}
	}
	buf = append(buf, value...)
	for i := len(value); i < width; i++ {
		buf = append(buf, ' ')
	}
	return buf, nil
}

// formatDecimal renders a float into at most 8 characters, preferring
// the shortest exact decimal form and degrading precision only when the
// exact form does not fit.
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if len(s) > 8 {
		s = strconv.FormatFloat(v, 'f', 2, 64)
	}
	if len(s) > 8 {
		s = strconv.FormatFloat(v, 'f', 0, 64)
	}
	return s
}

func signalField(name string, i int) string {
	return fmt.Sprintf("signal %d %s", i, name)
}
