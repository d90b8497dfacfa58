// Command pspf-launcher is the native entry point appended to (or
// resource-embedded in) a built PSPF package. It locates itself on disk,
// reads its own trailer and metadata, ensures the workenv cache is
// populated, composes an isolated environment, and execs the payload
// command (spec §4.6, §4.7, §4.9).
package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/pspf2025/internal/envlayer"
	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/provide-io/pspf2025/internal/shellparse"
	"github.com/provide-io/pspf2025/internal/storage"
	"github.com/provide-io/pspf2025/internal/workenv"
	"github.com/provide-io/pspf2025/pkg/logging"
	"github.com/provide-io/pspf2025/pkg/pspf"
)

func main() {
	logger := logging.NewLogger("pspf-launcher", logging.GetLogLevel(), os.Stderr)

	exePath, err := os.Executable()
	if err != nil {
		logger.Error("failed to resolve own executable path", "error", err)
		os.Exit(pspf.ExitGeneric)
	}

	if err := run(logger, exePath, os.Args[1:]); err != nil {
		logger.Error("launch failed", "error", err)
		if exitErr, ok := err.(*exitError); ok {
			os.Exit(exitErr.code)
		}
		os.Exit(pspf.ExitGeneric)
	}
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func run(logger hclog.Logger, exePath string, extraArgs []string) error {
	reader, err := pspf.Open(exePath, storage.ModeAuto, pspf.WithLogger(logger))
	if err != nil {
		return &exitError{pspf.ExitPayloadNotFound, fmt.Errorf("opening self as package: %w", err)}
	}
	defer reader.Close()

	result, err := reader.VerifyIntegrity()
	if err != nil {
		return &exitError{pspf.ExitGeneric, fmt.Errorf("integrity check: %w", err)}
	}
	if result.TamperDetected {
		logger.Warn("package integrity check reported tampering; continuing under configured validation tier")
	}

	meta, err := reader.ReadMetadata()
	if err != nil {
		return &exitError{pspf.ExitGeneric, fmt.Errorf("reading metadata: %w", err)}
	}

	workenvDir := workenv.Dir(meta.Package.Name, meta.Package.Version)

	var cv *workenv.CacheValidation
	if meta.CacheValidation != nil {
		cv = &workenv.CacheValidation{
			CheckFile:       meta.CacheValidation.CheckFile,
			ExpectedContent: meta.CacheValidation.ExpectedContent,
		}
	}

	if !workenv.IsCacheValid(workenvDir, meta.Package.Version, cv) {
		if err := populateWorkenv(logger, reader, meta, workenvDir); err != nil {
			return &exitError{pspf.ExitGeneric, err}
		}
	} else {
		logger.Debug("reusing cached workenv", "dir", workenvDir)
	}

	command := strings.ReplaceAll(meta.Execution.Command, "{workenv}", workenvDir)
	args, err := shellparse.Split(command)
	if err != nil {
		return &exitError{pspf.ExitGeneric, fmt.Errorf("tokenizing execution command: %w", err)}
	}
	if len(args) == 0 {
		return &exitError{pspf.ExitGeneric, fmt.Errorf("empty execution command")}
	}
	args = append(args, extraArgs...)

	spec := envSpecFromMeta(meta)
	env := envlayer.Compose(os.Environ(), spec, workenvDir, meta.Execution.Environment, logger)
	env = envlayer.WithOverrides(env, envlayer.PayloadVars(workenvDir, filepath.Base(args[0]), command))

	payload, lookErr := exec.LookPath(args[0])
	if lookErr != nil {
		return &exitError{pspf.ExitPayloadNotFound, fmt.Errorf("payload %q not found: %w", args[0], lookErr)}
	}

	cmd := exec.Command(payload, args[1:]...)
	cmd.Dir = workenvDir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if sig, ok := <-sigCh; ok && cmd.Process != nil {
			cmd.Process.Signal(sig)
		}
	}()

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return &exitError{pspf.ExitGeneric, fmt.Errorf("running payload: %w", err)}
	}
	return nil
}

func populateWorkenv(logger hclog.Logger, reader *pspf.Reader, meta *pspf.Metadata, workenvDir string) error {
	ok, err := workenv.TryAcquireLock(workenvDir)
	if err != nil {
		return fmt.Errorf("acquiring workenv lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("workenv %s is being initialized by another process", workenvDir)
	}
	defer workenv.ReleaseLock(workenvDir)

	descriptors, err := reader.ReadSlotDescriptors()
	if err != nil {
		return fmt.Errorf("reading slot descriptors: %w", err)
	}

	sources := make([]workenv.SlotSource, len(descriptors))
	for i, desc := range descriptors {
		encoded, err := readEncodedSlot(reader, i)
		if err != nil {
			return fmt.Errorf("reading slot %d: %w", i, err)
		}
		slotMeta := pspf.SlotMeta{}
		if i < len(meta.Slots) {
			slotMeta = meta.Slots[i]
		}
		sources[i] = workenv.SlotSource{
			Index:     i,
			ID:        slotMeta.ID,
			Ops:       pspfmt.UnpackOps(desc.Operations),
			Lifecycle: slotMeta.Lifecycle,
			Encoded:   encoded,
		}
	}

	if err := workenv.ExtractSlots(workenvDir, sources, logger); err != nil {
		return fmt.Errorf("extracting slots: %w", err)
	}

	if len(meta.SetupCommands) > 0 {
		cmds := make([]workenv.SetupCommand, len(meta.SetupCommands))
		for i, sc := range meta.SetupCommands {
			cmds[i] = workenv.SetupCommand{Type: sc.Type, Path: sc.Path, Content: sc.Content, Command: sc.Command, Pattern: sc.Pattern}
		}
		slotRef := func(idx int) (string, bool) {
			if idx < 0 || idx >= len(meta.Slots) {
				return "", false
			}
			return meta.Slots[idx].ID, true
		}
		onFailure := func(match string, err error) {
			logger.Warn("enumerate_and_execute failed for match", "match", match, "error", err)
		}
		if err := workenv.RunSetupCommands(workenvDir, meta.Package.Name, meta.Package.Version, cmds, os.Environ(), slotRef, onFailure, logger); err != nil {
			return fmt.Errorf("running setup commands: %w", err)
		}
	}

	if _, err := workenv.CleanupLifecycleSlots(workenvDir, sources); err != nil {
		return fmt.Errorf("cleaning up lifecycle slots: %w", err)
	}

	if cv := meta.CacheValidation; cv != nil {
		markerPath := strings.ReplaceAll(cv.CheckFile, "{workenv}", workenvDir)
		if !filepath.IsAbs(markerPath) {
			markerPath = filepath.Join(workenvDir, markerPath)
		}
		content := strings.ReplaceAll(cv.ExpectedContent, "{version}", meta.Package.Version)
		if err := os.WriteFile(markerPath, []byte(content), 0o644); err != nil {
			logger.Warn("failed to write cache validation marker", "path", markerPath, "error", err)
		}
	}

	return nil
}

// readEncodedSlot reads a slot's raw encoded bytes without reversing its
// op chain, since ExtractSlots reverses the chain itself.
func readEncodedSlot(reader *pspf.Reader, index int) ([]byte, error) {
	return reader.EncodedSlot(index)
}

func envSpecFromMeta(meta *pspf.Metadata) envlayer.Spec {
	if meta.Runtime == nil || meta.Runtime.Env == nil {
		return envlayer.Spec{Unset: envlayer.DefaultUnset()}
	}
	e := meta.Runtime.Env
	if e.Isolated != nil && !*e.Isolated {
		return envlayer.Spec{Pass: e.Pass, Unset: e.Unset, Map: e.Map, Set: e.Set}
	}
	return envlayer.Spec{Pass: e.Pass, Unset: mergeUnset(envlayer.DefaultUnset(), e.Unset), Map: e.Map, Set: e.Set}
}

// mergeUnset folds extra unset names into the default-unset floor,
// deduplicated, since the isolator always unsets the defaults unless
// isolation is off entirely (spec §4.9).
func mergeUnset(defaults, extra []string) []string {
	seen := make(map[string]bool, len(defaults)+len(extra))
	merged := make([]string, 0, len(defaults)+len(extra))
	for _, name := range defaults {
		if !seen[name] {
			seen[name] = true
			merged = append(merged, name)
		}
	}
	for _, name := range extra {
		if !seen[name] {
			seen[name] = true
			merged = append(merged, name)
		}
	}
	return merged
}
