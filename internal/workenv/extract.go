package workenv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/pspf2025/internal/codec"
	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/provide-io/pspf2025/internal/tarball"
)

// SlotSource is everything ExtractSlots needs to place one slot's
// content under the workenv, independent of how the caller read it off
// disk (spec §4.7 step 3).
type SlotSource struct {
	Index     int
	ID        string // target subpath under workenv; defaults to slot_{Index}
	Ops       []uint8
	Lifecycle string // runtime|startup|shutdown|cache|temp|volatile|lazy|eager|dev|config|platform|init
	Encoded   []byte // as stored in the package, before reversal
}

func containsOp(ops []uint8, target uint8) bool {
	for _, op := range ops {
		if op == target {
			return true
		}
	}
	return false
}

func targetName(s SlotSource) string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("slot_%d", s.Index)
}

// ExtractSlots reverses each slot's op chain and places the result under
// {workenv}/{slot.id}. Slots whose chain contains TAR are expanded as a
// directory tree directly into that path, without a temp path or rename;
// everything else is written as a single raw file via temp+atomic rename
// (spec §4.7 step 3). Once every slot is
// placed, shebangs under {workenv}/bin that still carry the literal
// "{workenv}" placeholder are rewritten to the real workenvDir.
func ExtractSlots(workenvDir string, slots []SlotSource, logger hclog.Logger) error {
	if err := Ensure(workenvDir); err != nil {
		return err
	}

	for _, slot := range slots {
		decoded, err := codec.ReverseChain(slot.Ops, slot.Encoded)
		if err != nil {
			return fmt.Errorf("workenv: reversing slot %d: %w", slot.Index, err)
		}

		target := filepath.Join(workenvDir, targetName(slot))

		if containsOp(slot.Ops, pspfmt.OpTar) {
			if err := tarball.ExtractMode(decoded, target, 0o755); err != nil {
				return fmt.Errorf("workenv: extracting tar slot %d into %s: %w", slot.Index, target, err)
			}
			continue
		}

		if err := writeFileAtomic(target, decoded, 0o644); err != nil {
			return fmt.Errorf("workenv: writing slot %d to %s: %w", slot.Index, target, err)
		}
	}

	if err := fixShebangs(filepath.Join(workenvDir, "bin"), "{workenv}", workenvDir, logger); err != nil {
		return fmt.Errorf("workenv: fixing shebangs: %w", err)
	}

	return nil
}

// writeFileAtomic writes data to a temp file in the same directory as
// path, then renames it into place, so a reader never observes a
// partially-written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// CleanupLifecycleSlots removes slots whose lifecycle is "init" (one-time
// setup, not needed again) and reports which remaining slots are "temp"
// (candidates for post-session cleanup by the caller), per spec §4.7
// step 5.
func CleanupLifecycleSlots(workenvDir string, slots []SlotSource) (tempSlots []string, err error) {
	for _, slot := range slots {
		target := filepath.Join(workenvDir, targetName(slot))
		switch slot.Lifecycle {
		case "init":
			if rmErr := os.RemoveAll(target); rmErr != nil && !os.IsNotExist(rmErr) {
				return tempSlots, fmt.Errorf("workenv: removing init slot %d: %w", slot.Index, rmErr)
			}
		case "temp":
			tempSlots = append(tempSlots, target)
		}
	}
	return tempSlots, nil
}
