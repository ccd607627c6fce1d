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
	"bufio"
	"fmt"
	"io"
)

// Writer writes EDF/EDF+ files.
//
// Records are buffered in memory and nothing reaches the underlying
// writer until Close, which writes the header with the final record
// count followed by every buffered record. Appends must arrive in
// increasing time order; the Writer does not reorder them.
type Writer struct {
	w   io.WriteSeeker
	hdr *Header

	records [][]byte

	// The first append that fails validation is remembered and
	// surfaced at Close; later appends are still accepted so the
	// caller can finish assembling the record set.
	deferred       error
	deferredRecord int
}

// Create creates a new EDF writer that writes to the given writer. The
// header and signal descriptors are fixed at creation; field overflows
// and singular signal ranges surface here rather than at Close.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.Version == "" {
		hdr.Version = Version0
	}
	if hdr.SignalCount == 0 {
		hdr.SignalCount = len(hdr.Signals)
	}
	if hdr.SignalCount != len(hdr.Signals) {
		return nil, fmt.Errorf("header declares %d signals but carries %d", hdr.SignalCount, len(hdr.Signals))
	}
	if err := hdr.validateSignals(); err != nil {
		return nil, err
	}

	// An annotation channel makes this an EDF+ file.
	if hdr.AnnotationSignal() >= 0 && !hdr.IsEDFPlus() {
		hdr.Reserved = FormatEDFPlusContinuous
	}

	// As recommended by the EDF standard.
	if size := hdr.RecordSize(); size > maxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", size, maxRecordBytes)
	}

	hdr.HeaderBytes = headerSize + len(hdr.Signals)*signalHeaderSize
	hdr.DataRecords = -1 // Unknown number of data records (at this time).

	// Dry-run the header encoding so overflowing fields fail now.
	if _, err := encodeHeader(&hdr); err != nil {
		return nil, err
	}

	return &Writer{w: w, hdr: &hdr}, nil
}

// AppendRecord validates and buffers one data record. samples is
// indexed by signal in declaration order; the entry for an annotation
// channel is ignored, its content comes from annotations instead. The
// first validation failure is returned and also remembered: Close will
// refuse to write the file until the caller starts over.
func (ew *Writer) AppendRecord(samples [][]float64, annotations ...Annotation) error {
	if len(annotations) > 0 && ew.hdr.AnnotationSignal() < 0 {
		return fmt.Errorf("header declares no annotation channel")
	}

	onset := float64(len(ew.records)) * ew.hdr.DataRecordDuration.Seconds()
	b, err := encodeRecord(ew.hdr.Signals, samples, annotations, onset)
	if err != nil {
		if ew.deferred == nil {
			ew.deferred = err
			ew.deferredRecord = len(ew.records)
		}
		return err
	}

	ew.records = append(ew.records, b)
	return nil
}

// Close finalizes the EDF file: the header, carrying the actual number
// of appended records, followed by all buffered records. If any append
// failed validation nothing is written at all, so a partially corrupt
// file cannot be emitted.
func (ew *Writer) Close() error {
	if ew.deferred != nil {
		return &IncompleteWriteError{Record: ew.deferredRecord, Err: ew.deferred}
	}

	ew.hdr.DataRecords = len(ew.records)
	hdrBytes, err := encodeHeader(ew.hdr)
	if err != nil {
		return err
	}

	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to start: %w", err)
	}

	writer := bufio.NewWriter(ew.w)
	if _, err := writer.Write(hdrBytes); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	for i, record := range ew.records {
		if _, err := writer.Write(record); err != nil {
			return fmt.Errorf("error writing record %d: %w", i, err)
		}
	}

	// Ensure all data is flushed to the underlying writer
	return writer.Flush()
}
