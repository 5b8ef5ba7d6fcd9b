// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pressure

import (
	"fmt"

	nmea "github.com/adrianmo/go-nmea"
)

// TypePRS is the sentence type of framed pressure records, e.g.
//
//	$LCPRS,7.66,2.80,-357.10,2.52*hh
//
// Some firmware builds wrap each record this way to get a checksum on noisy links.
const TypePRS = "PRS"

// PRS is a framed pressure sentence.
type PRS struct {
	nmea.BaseSentence
	Reading Reading
}

var framedParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypePRS: func(s nmea.BaseSentence) (nmea.Sentence, error) {
			r, err := fromFields(s.Fields)
			if err != nil {
				return nil, err
			}
			return PRS{BaseSentence: s, Reading: r}, nil
		},
	},
}

// parseFramed checks the NMEA checksum and extracts the reading.
// Any framing error is reported as ErrMalformedRecord.
func parseFramed(record string) (Reading, error) {
	sentence, err := framedParser.Parse(record)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	prs, ok := sentence.(PRS)
	if !ok {
		return Reading{}, fmt.Errorf("%w: unexpected sentence %s", ErrMalformedRecord, sentence.DataType())
	}
	return prs.Reading, nil
}
