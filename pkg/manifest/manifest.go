// Package manifest decodes the build-time JSON manifest that drives
// pspf-builder: package metadata, execution command, slot sources, and
// the optional runtime/cache-validation/setup-command blocks (spec §3.4,
// §4.8, §4.9; "manifest" is named as an external collaborator's contract
// in spec §1, out of scope as a parser but required here as the ambient
// input format for the builder CLI).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/provide-io/pspf2025/internal/pspfmt"
)

// BuildManifest is the decoded form of a manifest.json file.
type BuildManifest struct {
	Package         PackageSpec          `json:"package"`
	Execution       ExecutionSpec        `json:"execution"`
	Slots           []SlotSpec           `json:"slots,omitempty"`
	CacheValidation *CacheValidationSpec `json:"cache_validation,omitempty"`
	SetupCommands   []SetupCommandSpec   `json:"setup_commands,omitempty"`
	Runtime         *RuntimeEnvSpec      `json:"runtime,omitempty"`
}

// PackageSpec is the manifest's `package` block.
type PackageSpec struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// ExecutionSpec is the manifest's `execution` block.
type ExecutionSpec struct {
	Command     string            `json:"command"`
	PrimarySlot int               `json:"primary_slot,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// SlotSpec describes one slot's source material and how to encode it.
// `Operations` is a human-written dotted chain such as "tar.gz",
// "bzip2", or "xz", matching the teacher's manifest convention rather
// than the packed wire form.
type SlotSpec struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Purpose     string `json:"purpose,omitempty"`
	Lifecycle   string `json:"lifecycle,omitempty"`
	Target      string `json:"target,omitempty"`
	Operations  string `json:"operations,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// CacheValidationSpec is the manifest's `cache_validation` block.
type CacheValidationSpec struct {
	CheckFile       string `json:"check_file"`
	ExpectedContent string `json:"expected_content,omitempty"`
}

// SetupCommandSpec is one entry of the manifest's `setup_commands` list.
type SetupCommandSpec struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Command string `json:"command,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// RuntimeEnvSpec is the manifest's `runtime.env` block.
type RuntimeEnvSpec struct {
	Pass     []string          `json:"pass,omitempty"`
	Unset    []string          `json:"unset,omitempty"`
	Map      map[string]string `json:"map,omitempty"`
	Set      map[string]string `json:"set,omitempty"`
	Isolated *bool             `json:"isolated,omitempty"`
}

// Load reads and decodes a manifest file from path.
func Load(path string) (*BuildManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	var m BuildManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}
	if m.Package.Name == "" {
		return nil, fmt.Errorf("manifest: package.name is required")
	}
	if m.Execution.Command == "" {
		return nil, fmt.Errorf("manifest: execution.command is required")
	}
	return &m, nil
}

// ParseOperations translates a manifest slot's human-written dotted
// operations string (e.g. "tar.gz", "bzip2", "tar.xz", "none") into the
// packed op-code sequence of spec §3.5.
func ParseOperations(s string) ([]uint8, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	ops := make([]uint8, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "tar":
			ops = append(ops, pspfmt.OpTar)
		case "gz", "gzip":
			ops = append(ops, pspfmt.OpGzip)
		case "bz2", "bzip2":
			ops = append(ops, pspfmt.OpBzip2)
		case "xz":
			ops = append(ops, pspfmt.OpXZ)
		case "zst", "zstd":
			ops = append(ops, pspfmt.OpZstd)
		case "none":
			// no-op filler; skip
		default:
			return nil, fmt.Errorf("manifest: unknown operation %q in chain %q", p, s)
		}
	}
	if len(ops) > 8 {
		return nil, fmt.Errorf("manifest: operation chain %q exceeds 8 entries", s)
	}
	return ops, nil
}
