// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import "encoding/binary"

// recordSize returns the byte length of one data record: two bytes per
// sample, summed over all signals.
func recordSize(signals []Signal) int {
	var n int
	for i := range signals {
		n += signals[i].SamplesPerRecord * 2
	}
	return n
}

// decodeRecord decodes one multiplexed data record into per-signal
// physical sample slices. Samples of each signal are consecutive
// little-endian signed 16-bit integers, concatenated in declaration
// order. Annotation channels decode into annotations instead and leave
// a nil entry in the sample slices.
func decodeRecord(b []byte, signals []Signal) ([][]float64, []Annotation, error) {
	size := recordSize(signals)
	if len(b) < size {
		return nil, nil, &TruncatedRecordError{Expected: size, Actual: len(b)}
	}

	samples := make([][]float64, len(signals))
	var annotations []Annotation

	off := 0
	for i := range signals {
		sig := &signals[i]
		raw := b[off : off+sig.SamplesPerRecord*2]
		off += sig.SamplesPerRecord * 2

		if sig.IsAnnotation() {
			anns, err := decodeAnnotations(raw)
			if err != nil {
				return nil, nil, err
			}
			annotations = append(annotations, anns...)
			continue
		}

		cal := sig.calibration()
		out := make([]float64, sig.SamplesPerRecord)
		for j := range out {
			out[j] = cal.physical(int16(binary.LittleEndian.Uint16(raw[j*2:])))
		}
		samples[i] = out
	}

	return samples, annotations, nil
}

// encodeRecord encodes per-signal physical samples and annotations into
// one data record. samples is indexed by signal in declaration order;
// the entry for an annotation channel is ignored. onset is the record's
// start time in seconds, written as the channel's timekeeping TAL.
func encodeRecord(signals []Signal, samples [][]float64, annotations []Annotation, onset float64) ([]byte, error) {
	if len(samples) != len(signals) {
		return nil, &SampleCountMismatchError{Signal: -1, Expected: len(signals), Actual: len(samples)}
	}

	buf := make([]byte, 0, recordSize(signals))
	for i := range signals {
		sig := &signals[i]

		if sig.IsAnnotation() {
			// The record's timekeeping TAL comes first, then the caller's
			// annotations in onset order.
			tals := make([]Annotation, 0, len(annotations)+1)
			tals = append(tals, Annotation{Onset: onset})
			tals = append(tals, annotations...)
			encoded, err := encodeAnnotations(tals, sig.SamplesPerRecord*2)
			if err != nil {
				return nil, err
			}
			buf = append(buf, encoded...)
			continue
		}

		if len(samples[i]) != sig.SamplesPerRecord {
			return nil, &SampleCountMismatchError{Signal: i, Expected: sig.SamplesPerRecord, Actual: len(samples[i])}
		}

		cal := sig.calibration()
		for _, physical := range samples[i] {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(cal.digital(physical)))
		}
	}

	return buf, nil
}
