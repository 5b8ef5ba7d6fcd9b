// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package padmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Store loads and saves the Mapping under Key.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted mapping, or Identity when nothing usable is stored.
// It never fails.
func (s *Store) Load() Mapping {
	data, err := s.kv.Get(Key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("padmap: read failed, using identity: %v", err)
		}
		return Identity
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("padmap: stored mapping %q unusable, using identity: %v", data, err)
		return Identity
	}
	return m
}

// Save persists m. Saving the value already stored does not write.
func (s *Store) Save(m Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to save mapping: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	if cur, err := s.kv.Get(Key); err == nil && bytes.Equal(cur, data) {
		return nil
	}
	if err := s.kv.Set(Key, data); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

// Clear removes the persisted mapping; Load returns Identity until the next Save.
func (s *Store) Clear() error {
	if err := s.kv.Delete(Key); err != nil {
		return fmt.Errorf("failed to clear mapping: %w", err)
	}
	return nil
}
