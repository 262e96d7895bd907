// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// SchemaVersion is the checkpoint format version.
const SchemaVersion = "1"

var (
	// ErrChecksumMismatch indicates a corrupted checkpoint.
	ErrChecksumMismatch = errors.New("checkpoint checksum mismatch")

	// ErrSchemaVersion indicates a checkpoint written by an incompatible
	// version.
	ErrSchemaVersion = errors.New("unsupported checkpoint schema version")
)

// Checkpoint is the stored envelope around a session.
type Checkpoint struct {
	SchemaVersion string          `json:"schema_version"`
	Version       int64           `json:"version"`
	SavedAt       time.Time       `json:"saved_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Checksum      string          `json:"checksum"`
	Session       json.RawMessage `json:"session"`
}

// Expired reports whether the checkpoint is past its expiry at now.
func (c *Checkpoint) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// EncodeCheckpoint serialises a session into a checkpoint envelope.
func EncodeCheckpoint(s *datatypes.InterviewSession, version int64, now time.Time, ttl time.Duration) ([]byte, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", s.ID, err)
	}
	sum := sha256.Sum256(body)
	cp := Checkpoint{
		SchemaVersion: SchemaVersion,
		Version:       version,
		SavedAt:       now.UTC(),
		Checksum:      hex.EncodeToString(sum[:]),
		Session:       body,
	}
	if ttl > 0 {
		cp.ExpiresAt = now.UTC().Add(ttl)
	}
	return json.Marshal(cp)
}

// DecodeCheckpoint parses and verifies a checkpoint envelope.
func DecodeCheckpoint(data []byte) (*Checkpoint, *datatypes.InterviewSession, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if cp.SchemaVersion != SchemaVersion {
		return nil, nil, fmt.Errorf("%w: %q", ErrSchemaVersion, cp.SchemaVersion)
	}
	sum := sha256.Sum256(cp.Session)
	if hex.EncodeToString(sum[:]) != cp.Checksum {
		return nil, nil, ErrChecksumMismatch
	}
	var s datatypes.InterviewSession
	if err := json.Unmarshal(cp.Session, &s); err != nil {
		return nil, nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &cp, &s, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", datatypes.ErrSessionNotFound, id)
}
