// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stream turns arbitrarily chunked serial text into complete records.
package stream

import (
	"iter"
	"strings"
)

// Terminator ends one record on the wire.
const Terminator = "\n"

// Reassembler accumulates chunks and hands back whole records.
// The zero value is ready to use. It is not safe for concurrent use.
type Reassembler struct {
	buf string
}

// Push appends chunk to the buffer and returns every record completed by it.
// The trailing segment (possibly empty or partial) stays buffered.
func (r *Reassembler) Push(chunk string) []string {
	if chunk == "" {
		return nil
	}
	r.buf += chunk
	if !strings.Contains(chunk, Terminator) {
		return nil
	}

	parts := strings.Split(r.buf, Terminator)
	r.buf = parts[len(parts)-1]
	return parts[:len(parts)-1]
}

// Buffered returns the partial record waiting for its terminator.
func (r *Reassembler) Buffered() string {
	return r.buf
}

// Reset drops any buffered partial record, e.g. after a reconnect.
func (r *Reassembler) Reset() {
	r.buf = ""
}

// Records lazily reassembles chunks into records. The returned sequence
// consumes chunks as it is iterated and cannot be restarted.
func Records(chunks iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		var r Reassembler
		for chunk := range chunks {
			for _, rec := range r.Push(chunk) {
				if !yield(rec) {
					return
				}
			}
		}
	}
}
