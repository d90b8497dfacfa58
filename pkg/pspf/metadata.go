// Package pspf implements the PSPF/2025 container format: the metadata
// document, the Reader that opens and verifies a built package, and the
// Writer that assembles one (spec §3.4, §4.6, §4.10).
package pspf

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"time"
)

// Metadata is the canonical JSON document gzipped into the metadata
// region (spec §3.4). Field order here is the serialized key order.
type Metadata struct {
	Format          string               `json:"format"`
	Package         PackageInfo          `json:"package"`
	Build           BuildInfo            `json:"build"`
	Execution       ExecutionInfo        `json:"execution"`
	Slots           []SlotMeta           `json:"slots,omitempty"`
	Verification    *VerificationInfo    `json:"verification,omitempty"`
	CacheValidation *CacheValidationMeta `json:"cache_validation,omitempty"`
	SetupCommands   []SetupCommandMeta   `json:"setup_commands,omitempty"`
	Runtime         *RuntimeMeta         `json:"runtime,omitempty"`
}

// PackageInfo names the package (spec §3.4).
type PackageInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// BuildInfo records how and when the package was produced. Deterministic
// builds zero Timestamp and Host.
type BuildInfo struct {
	Builder   string `json:"builder"`
	Timestamp string `json:"timestamp"`
	Host      string `json:"host"`
}

// ExecutionInfo describes how the payload is invoked.
type ExecutionInfo struct {
	Command     string            `json:"command"`
	PrimarySlot int               `json:"primary_slot,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// VerificationInfo declares the integrity seal algorithm in use.
type VerificationInfo struct {
	Required  bool   `json:"required"`
	Algorithm string `json:"algorithm"`
}

// SlotMeta is the per-slot metadata entry, parallel by index to the
// packed slot descriptor table (spec §3.4).
type SlotMeta struct {
	Slot        int    `json:"slot"`
	ID          string `json:"id"`
	Operations  string `json:"operations,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	Lifecycle   string `json:"lifecycle,omitempty"`
	Target      string `json:"target,omitempty"`
	Type        string `json:"type,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
}

// CacheValidationMeta is the workenv reuse marker declaration (spec §4.7).
type CacheValidationMeta struct {
	CheckFile       string `json:"check_file"`
	ExpectedContent string `json:"expected_content,omitempty"`
}

// SetupCommandMeta is one post-extraction action (spec §4.8).
type SetupCommandMeta struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Command string `json:"command,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// RuntimeMeta carries the environment isolation spec (spec §4.9).
type RuntimeMeta struct {
	Env *EnvSpec `json:"env,omitempty"`
}

// EnvSpec mirrors internal/envlayer.Spec at the metadata-document level,
// plus the isolated flag that gates the built-in default unset list.
type EnvSpec struct {
	Pass     []string          `json:"pass,omitempty"`
	Unset    []string          `json:"unset,omitempty"`
	Map      map[string]string `json:"map,omitempty"`
	Set      map[string]string `json:"set,omitempty"`
	Isolated *bool             `json:"isolated,omitempty"`
}

// MarshalCanonical serializes m the way §3.4 requires: UTF-8, stable key
// order (struct field order), fixed two-space indent, no trailing
// newline.
func (m *Metadata) MarshalCanonical() ([]byte, error) {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalMetadata parses a canonical metadata document.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GzipDeterministic compresses data with a gzip header carrying no
// filename or mtime and an "unknown" OS byte, so identical inputs always produce
// identical compressed bytes (spec §3.4 invariant).
func GzipDeterministic(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	zw.Header.ModTime = time.Time{}
	zw.Header.Name = ""
	zw.Header.OS = 0xFF // unknown, per the gzip spec; avoids leaking the build OS
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Gunzip reverses GzipDeterministic.
func Gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
