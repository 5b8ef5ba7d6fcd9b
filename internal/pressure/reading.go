// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pressure holds the four-channel reading type and the record parser.
package pressure

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Channels is the number of physical sensor inputs per record.
const Channels = 4

// FieldSeparator splits the values of one record.
const FieldSeparator = ","

// ErrMalformedRecord is returned for records that cannot yield a Reading.
// Callers drop the record and keep streaming.
var ErrMalformedRecord = errors.New("malformed record")

// Reading is one sample of all channels, in kPa. More negative means pressed harder.
type Reading [Channels]float64

// Parse converts one raw record into a Reading.
//
// Fields beyond the fourth are ignored. A field that is not a finite number
// becomes NaN for that channel instead of rejecting the record. Records with fewer
// than four fields return ErrMalformedRecord. Records starting with '$' are
// NMEA framed (see parseFramed).
func Parse(record string) (Reading, error) {
	record = strings.TrimSpace(record)
	if strings.HasPrefix(record, "$") {
		return parseFramed(record)
	}

	fields := strings.Split(record, FieldSeparator)
	return fromFields(fields)
}

func fromFields(fields []string) (Reading, error) {
	var r Reading
	if len(fields) < Channels {
		return r, ErrMalformedRecord
	}
	for i := 0; i < Channels; i++ {
		r[i] = parseValue(fields[i])
	}
	return r, nil
}

func parseValue(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Valid reports whether channel c carries a number.
func (r Reading) Valid(c int) bool {
	return !math.IsNaN(r[c])
}
