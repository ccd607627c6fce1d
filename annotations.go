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
	"cmp"
	"fmt"
	"slices"
	"strconv"
)

// TAL control bytes defined by the EDF+ standard. A TAL is
// "+"|"-" onset [0x15 duration] 0x14 {text 0x14} 0x00.
const (
	talFieldSep    = 0x14 // ends onset/duration and each text
	talDurationSep = 0x15 // introduces the optional duration
	talTerminator  = 0x00 // ends the TAL; also pads the channel
)

type talState int

const (
	talReadOnset talState = iota
	talReadDuration
	talReadText
)

// decodeAnnotations parses the TALs packed into one annotation
// channel's bytes. Timekeeping TALs, which carry only empty text, are
// consumed but produce no annotations.
func decodeAnnotations(b []byte) ([]Annotation, error) {
	var out []Annotation
	pos := 0
	for pos < len(b) && b[pos] != talTerminator {
		anns, next, err := decodeTAL(b, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, anns...)
		pos = next
	}
	// Whatever remains is zero padding up to the channel capacity.
	return out, nil
}

// decodeTAL parses a single TAL starting at b[start] and returns its
// annotations along with the position just past the terminator.
func decodeTAL(b []byte, start int) ([]Annotation, int, error) {
	if b[start] != '+' && b[start] != '-' {
		return nil, 0, &MalformedAnnotationError{Offset: start, Reason: "onset must begin with '+' or '-'"}
	}

	var (
		onset       float64
		duration    float64
		hasDuration bool
		texts       []string
	)

	state := talReadOnset
	field := make([]byte, 0, 16)
	for pos := start; pos < len(b); pos++ {
		c := b[pos]
		switch state {
		case talReadOnset:
			switch c {
			case talDurationSep:
				v, err := parseTALNumber(field, start, "onset", true)
				if err != nil {
					return nil, 0, err
				}
				onset = v
				field = field[:0]
				state = talReadDuration
			case talFieldSep:
				v, err := parseTALNumber(field, start, "onset", true)
				if err != nil {
					return nil, 0, err
				}
				onset = v
				field = field[:0]
				state = talReadText
			case talTerminator:
				return nil, 0, &MalformedAnnotationError{Offset: pos, Reason: "TAL ended before its onset separator"}
			default:
				field = append(field, c)
			}
		case talReadDuration:
			switch c {
			case talFieldSep:
				v, err := parseTALNumber(field, pos-len(field), "duration", false)
				if err != nil {
					return nil, 0, err
				}
				duration = v
				hasDuration = true
				field = field[:0]
				state = talReadText
			case talDurationSep:
				return nil, 0, &MalformedAnnotationError{Offset: pos, Reason: "unexpected duration marker"}
			case talTerminator:
				return nil, 0, &MalformedAnnotationError{Offset: pos, Reason: "TAL ended inside its duration"}
			default:
				field = append(field, c)
			}
		case talReadText:
			switch c {
			case talFieldSep:
				texts = append(texts, string(field))
				field = field[:0]
			case talTerminator:
				if len(field) > 0 {
					return nil, 0, &MalformedAnnotationError{Offset: pos, Reason: "annotation text missing its separator"}
				}
				var anns []Annotation
				for _, t := range texts {
					if t == "" {
						continue
					}
					anns = append(anns, Annotation{
						Onset:       onset,
						Duration:    duration,
						HasDuration: hasDuration,
						Text:        t,
					})
				}
				return anns, pos + 1, nil
			default:
				field = append(field, c)
			}
		}
	}
	return nil, 0, &MalformedAnnotationError{Offset: start, Reason: "missing terminating null byte"}
}

// parseTALNumber parses an onset or duration field: optionally signed
// (onset only), optionally fractional, decimal ASCII digits.
func parseTALNumber(field []byte, offset int, what string, signed bool) (float64, error) {
	for i, c := range field {
		switch {
		case c >= '0' && c <= '9', c == '.':
		case (c == '+' || c == '-') && i == 0 && signed:
		default:
			return 0, &MalformedAnnotationError{Offset: offset, Reason: fmt.Sprintf("non-numeric %s %q", what, field)}
		}
	}
	v, err := strconv.ParseFloat(string(field), 64)
	if err != nil {
		return 0, &MalformedAnnotationError{Offset: offset, Reason: fmt.Sprintf("non-numeric %s %q", what, field)}
	}
	return v, nil
}

// encodeAnnotations serializes annotations as TALs in onset order and
// zero-pads the result to the annotation channel's fixed capacity.
func encodeAnnotations(anns []Annotation, capacity int) ([]byte, error) {
	anns = slices.Clone(anns)
	slices.SortStableFunc(anns, func(a, b Annotation) int {
		return cmp.Compare(a.Onset, b.Onset)
	})

	buf := make([]byte, 0, capacity)
	for _, a := range anns {
		buf = appendTAL(buf, a)
	}
	if len(buf) > capacity {
		return nil, &AnnotationOverflowError{Capacity: capacity, Size: len(buf)}
	}
	for len(buf) < capacity {
		buf = append(buf, talTerminator)
	}
	return buf, nil
}

func appendTAL(buf []byte, a Annotation) []byte {
	if a.Onset >= 0 {
		buf = append(buf, '+')
	}
	buf = strconv.AppendFloat(buf, a.Onset, 'f', -1, 64)
	if a.HasDuration {
		buf = append(buf, talDurationSep)
		buf = strconv.AppendFloat(buf, a.Duration, 'f', -1, 64)
	}
	buf = append(buf, talFieldSep)
	buf = append(buf, a.Text...)
	buf = append(buf, talFieldSep, talTerminator)
	return buf
}
