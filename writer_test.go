// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/polysomnia/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()

	f, err := os.OpenFile(filepath.Join(t.TempDir(), "test.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	return f
}

func TestWriter(t *testing.T) {
	f := tempFile(t)

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "Patient X",
		RecordingID:        "Recording 1",
		StartTime:          time.Now(),
		DataRecordDuration: 60 * time.Second,
		SignalCount:        1,
		Signals: []edf.Signal{
			{
				Label:             "EEG Fpz-Cz",
				TransducerType:    "AgAgCl electrode",
				PhysicalDimension: "uV",
				PhysicalMin:       -500,
				PhysicalMax:       500,
				DigitalMin:        -2048,
				DigitalMax:        2047,
				SamplesPerRecord:  256,
			},
		},
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	// Write some data records
	record := make([]float64, 256)
	for i := range record {
		record[i] = float64(i) // physical value
	}

	// Write the first data record
	err = ew.AppendRecord([][]float64{record})
	require.NoError(t, err)

	for i := range record {
		record[i] = float64(i + 256)
	}

	// Write the second data record
	err = ew.AppendRecord([][]float64{record})
	require.NoError(t, err)

	// Close the writer (this writes the header and the records)
	require.NoError(t, ew.Close())

	// Rewind the file
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	// Read the file
	er, err := edf.Open(f)
	require.NoError(t, err)
	require.Equal(t, 2, er.Header().DataRecords)

	sr, err := er.Signal(0)
	require.NoError(t, err)

	samples := make([]float64, 512)
	n, err := sr.Read(samples)
	require.NoError(t, err)
	require.Equal(t, 512, n)

	// Verify the samples match what was written.
	for i := range samples {
		require.InDelta(t, float64(i), samples[i], 1.0)
	}

	// Reader should now return EOF
	_, err = sr.Read(samples)
	require.Equal(t, io.EOF, err)
}

func TestWriterEDFPlus(t *testing.T) {
	f := tempFile(t)

	hdr := edf.Header{
		PatientID:          "Patient X",
		RecordingID:        "Recording 1",
		StartTime:          time.Date(2024, time.March, 1, 22, 15, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{
				Label:             "EEG Fpz-Cz",
				PhysicalDimension: "uV",
				PhysicalMin:       -500,
				PhysicalMax:       500,
				DigitalMin:        -2048,
				DigitalMax:        2047,
				SamplesPerRecord:  4,
			},
			{
				Label:            edf.AnnotationLabel,
				PhysicalMin:      -1,
				PhysicalMax:      1,
				DigitalMin:       -32768,
				DigitalMax:       32767,
				SamplesPerRecord: 8,
			},
		},
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	written := []float64{1.5, -2.5, 100, -100}
	err = ew.AppendRecord([][]float64{written, nil}, edf.Annotation{Onset: 0, Text: "Start"})
	require.NoError(t, err)

	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)

	// The annotation channel upgraded the file to EDF+.
	require.True(t, er.Header().IsEDFPlus())
	require.Equal(t, 1, er.Header().DataRecords)

	rec, err := er.ReadRecord(0)
	require.NoError(t, err)

	require.Len(t, rec.Samples[0], 4)
	for i := range written {
		// Within one digital quantization step.
		assert.InDelta(t, written[i], rec.Samples[0][i], 1000.0/4095.0)
	}
	assert.Nil(t, rec.Samples[1])
	assert.Equal(t, []edf.Annotation{{Onset: 0, Text: "Start"}}, rec.Annotations)
}

func TestWriterDeferredError(t *testing.T) {
	f := tempFile(t)

	hdr := edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{
				Label:            "EEG Fpz-Cz",
				PhysicalMin:      -500,
				PhysicalMax:      500,
				DigitalMin:       -2048,
				DigitalMax:       2047,
				SamplesPerRecord: 4,
			},
		},
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	// Three samples where four are declared.
	err = ew.AppendRecord([][]float64{{1, 2, 3}})
	var mismatch *edf.SampleCountMismatchError
	require.ErrorAs(t, err, &mismatch)

	// Later appends are still accepted so the record set can be
	// finished, but Close refuses to write the file.
	require.NoError(t, ew.AppendRecord([][]float64{{1, 2, 3, 4}}))

	err = ew.Close()
	var incomplete *edf.IncompleteWriteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 0, incomplete.Record)
	require.ErrorAs(t, incomplete.Err, &mismatch)

	// Nothing must have reached the file.
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestCreateRejectsFieldOverflow(t *testing.T) {
	hdr := edf.Header{
		PatientID:          strings.Repeat("x", 81),
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{
				Label:            "EEG Fpz-Cz",
				PhysicalMin:      -500,
				PhysicalMax:      500,
				DigitalMin:       -2048,
				DigitalMax:       2047,
				SamplesPerRecord: 4,
			},
		},
	}

	_, err := edf.Create(tempFile(t), hdr)

	var overflow *edf.FieldOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "patient id", overflow.Field)
}

func TestCreateRejectsSingularRange(t *testing.T) {
	hdr := edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{
				Label:            "EEG Fpz-Cz",
				PhysicalMin:      500,
				PhysicalMax:      -500,
				DigitalMin:       -2048,
				DigitalMax:       2047,
				SamplesPerRecord: 4,
			},
		},
	}

	_, err := edf.Create(tempFile(t), hdr)

	var rangeErr *edf.RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "physical", rangeErr.Kind)
}

func TestAppendRecordWithoutAnnotationChannel(t *testing.T) {
	hdr := edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{
				Label:            "EEG Fpz-Cz",
				PhysicalMin:      -500,
				PhysicalMax:      500,
				DigitalMin:       -2048,
				DigitalMax:       2047,
				SamplesPerRecord: 4,
			},
		},
	}

	ew, err := edf.Create(tempFile(t), hdr)
	require.NoError(t, err)

	err = ew.AppendRecord([][]float64{{1, 2, 3, 4}}, edf.Annotation{Onset: 0, Text: "Start"})
	require.Error(t, err)
}
