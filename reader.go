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
	"encoding/binary"
	"fmt"
	"io"
	"iter"
)

// Reader reads EDF/EDF+ files.
//
// Record reads are stateless: every ReadRecord seeks to the record's
// absolute offset, so records may be read repeatedly and in any order.
// A Reader is not internally synchronized.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading. It parses and validates the
// header and the signal header block; the record cursor concept does
// not exist, records are addressed by index.
func Open(r io.ReadSeeker) (*Reader, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("error sizing file: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}

	main := make([]byte, headerSize)
	if _, err := io.ReadFull(r, main); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	ns, err := parseHeaderInt(main, 252, 4, "number of signals")
	if err != nil {
		return nil, err
	}
	if ns < 0 {
		return nil, &MalformedHeaderError{Offset: 252, Field: "number of signals", Reason: "negative signal count"}
	}
	if int64(headerSize+ns*signalHeaderSize) > size {
		return nil, &MalformedHeaderError{
			Offset: 252,
			Field:  "number of signals",
			Reason: fmt.Sprintf("%d signals need a %d byte header, file has %d bytes", ns, headerSize+ns*signalHeaderSize, size),
		}
	}

	full := make([]byte, headerSize+ns*signalHeaderSize)
	copy(full, main)
	if _, err := io.ReadFull(r, full[headerSize:]); err != nil {
		return nil, fmt.Errorf("error reading signal headers: %w", err)
	}

	hdr, err := parseHeader(full)
	if err != nil {
		return nil, err
	}
	if err := hdr.validateSignals(); err != nil {
		return nil, err
	}

	// Recover the record count when the writer never finalized it.
	if hdr.DataRecords < 0 && hdr.RecordSize() > 0 {
		hdr.DataRecords = int((size - int64(hdr.HeaderBytes)) / int64(hdr.RecordSize()))
	}

	return &Reader{r: r, hdr: hdr}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// ReadRecord decodes the data record at the given index. The read is
// idempotent; re-reading an index yields identical output.
func (er *Reader) ReadRecord(index int) (*Record, error) {
	if index < 0 || index >= er.hdr.DataRecords {
		return nil, &IndexOutOfRangeError{Index: index, Records: er.hdr.DataRecords}
	}

	size := er.hdr.RecordSize()
	pos := int64(er.hdr.HeaderBytes) + int64(index)*int64(size)
	if _, err := er.r.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to record %d: %w", index, err)
	}

	buf := make([]byte, size)
	if n, err := io.ReadFull(er.r, buf); err != nil {
		return nil, &TruncatedRecordError{Expected: size, Actual: n}
	}

	samples, annotations, err := decodeRecord(buf, er.hdr.Signals)
	if err != nil {
		return nil, err
	}
	return &Record{Samples: samples, Annotations: annotations}, nil
}

// Records returns a lazy sequence over all data records. The sequence
// is restartable: each range re-reads from record zero, and every fetch
// re-seeks, so no cursor is shared between iterations. Iteration stops
// after yielding the first error.
func (er *Reader) Records() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for i := 0; i < er.hdr.DataRecords; i++ {
			rec, err := er.ReadRecord(i)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	hdr              *Header
	cal              calibration
	currentRecord    int // Current record being processed
	currentSample    int // Current sample in the record
	recordSize       int // Total size of one data record
	signalOffset     int // Byte offset of the signal in a record
	samplesPerRecord int // Number of samples per record for the signal
}

// Signal creates a new SignalReader for a specified signal index.
// Annotation channels carry TALs rather than samples and cannot be
// read this way.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	signal := er.hdr.Signals[signalIndex]
	if signal.IsAnnotation() {
		return nil, fmt.Errorf("signal %d is an annotation channel", signalIndex)
	}

	signalOffset := 0
	for i := 0; i < signalIndex; i++ {
		signalOffset += er.hdr.Signals[i].SamplesPerRecord * 2
	}

	return &SignalReader{
		r:                er.r,
		hdr:              er.hdr,
		cal:              signal.calibration(),
		recordSize:       er.hdr.RecordSize(),
		signalOffset:     signalOffset,
		samplesPerRecord: signal.SamplesPerRecord,
	}, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	buf := make([]byte, 2)

	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords {
			return n, io.EOF // End of data records
		}

		// Calculate position to read the digital sample from
		pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset) + int64(sr.currentSample*2)
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return n, fmt.Errorf("error seeking to position: %w", err)
		}

		// Read the digital sample
		if _, err := io.ReadFull(sr.r, buf); err != nil {
			return n, fmt.Errorf("error reading sample data: %w", err)
		}
		data[n] = sr.cal.physical(int16(binary.LittleEndian.Uint16(buf)))

		n++

		// Move to the next sample
		sr.currentSample++
		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}
