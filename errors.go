// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import "fmt"

// MalformedHeaderError reports a header field that could not be parsed,
// with the byte offset of the field within the header block.
type MalformedHeaderError struct {
	Offset int
	Field  string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("edf: malformed header field %q at offset %d: %s", e.Field, e.Offset, e.Reason)
}

// FieldOverflowError reports a header value that does not fit its fixed
// field width once formatted. Values are never silently truncated; the
// caller must shorten the value first.
type FieldOverflowError struct {
	Field string
	Value string
	Width int
}

func (e *FieldOverflowError) Error() string {
	return fmt.Sprintf("edf: field %q value %q exceeds its width of %d bytes", e.Field, e.Value, e.Width)
}

// RangeError reports a signal whose digital or physical range is equal
// or inverted, making the affine calibration singular.
type RangeError struct {
	Label string
	Kind  string // "digital" or "physical"
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("edf: signal %q has a singular %s range [%v, %v]", e.Label, e.Kind, e.Min, e.Max)
}

// TruncatedRecordError reports a data record buffer shorter than the
// fixed record length declared by the header.
type TruncatedRecordError struct {
	Expected int
	Actual   int
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("edf: truncated data record: need %d bytes, have %d", e.Expected, e.Actual)
}

// SampleCountMismatchError reports a sample slice whose length does not
// match the signal's declared samples per record. Signal is -1 when the
// number of supplied signals itself is wrong.
type SampleCountMismatchError struct {
	Signal   int
	Expected int
	Actual   int
}

func (e *SampleCountMismatchError) Error() string {
	if e.Signal < 0 {
		return fmt.Sprintf("edf: expected samples for %d signals, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("edf: signal %d expects %d samples per record, got %d", e.Signal, e.Expected, e.Actual)
}

// MalformedAnnotationError reports an annotation channel whose TAL
// encoding could not be parsed, with the byte offset of the fault
// within the channel's bytes.
type MalformedAnnotationError struct {
	Offset int
	Reason string
}

func (e *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("edf: malformed annotation at offset %d: %s", e.Offset, e.Reason)
}

// AnnotationOverflowError reports encoded TALs that exceed the
// annotation channel's fixed capacity. Callers must split annotations
// across records or declare a larger annotation channel.
type AnnotationOverflowError struct {
	Capacity int
	Size     int
}

func (e *AnnotationOverflowError) Error() string {
	return fmt.Sprintf("edf: encoded annotations take %d bytes, annotation channel holds %d", e.Size, e.Capacity)
}

// IndexOutOfRangeError reports a record index at or beyond the number
// of data records in the file.
type IndexOutOfRangeError struct {
	Index   int
	Records int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("edf: record index %d out of range, file has %d records", e.Index, e.Records)
}

// IncompleteWriteError is returned by Writer.Close when an earlier
// append failed validation. Nothing is written in that case, so a file
// claiming a record count that was never validly populated cannot be
// emitted.
type IncompleteWriteError struct {
	Record int // index of the first record that failed validation
	Err    error
}

func (e *IncompleteWriteError) Error() string {
	return fmt.Sprintf("edf: record %d failed validation, no file written: %v", e.Record, e.Err)
}

func (e *IncompleteWriteError) Unwrap() error {
	return e.Err
}
