package workenv

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/pspf2025/internal/shellparse"
)

// SetupCommand is one entry of the metadata document's setup_commands
// list (spec §4.8). Exactly one of the type-specific fields is
// meaningful, selected by Type.
type SetupCommand struct {
	Type    string // write_file | execute | enumerate_and_execute
	Path    string // write_file
	Content string // write_file
	Command string // execute, enumerate_and_execute
	Pattern string // enumerate_and_execute
}

// SlotRef resolves a {slot:N} placeholder to the slot's id, for commands
// that reference extracted slot paths.
type SlotRef func(index int) (id string, ok bool)

func substituteCommandPlaceholders(s, workenvDir, packageName, version string, slotRef SlotRef) string {
	s = strings.ReplaceAll(s, "{workenv}", workenvDir)
	s = strings.ReplaceAll(s, "{package_name}", packageName)
	s = strings.ReplaceAll(s, "{version}", version)

	for {
		start := strings.Index(s, "{slot:")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			break
		}
		end += start

		var idx int
		if _, err := fmt.Sscanf(s[start+len("{slot:"):end], "%d", &idx); err != nil {
			break
		}
		id, ok := slotRef(idx)
		if !ok {
			break
		}
		replacement := filepath.Join(workenvDir, id)
		s = s[:start] + replacement + s[end+1:]
	}
	return s
}

// RunSetupCommands executes setup_commands strictly sequentially in
// declared order (spec §5). write_file and execute failures are fatal;
// enumerate_and_execute logs a per-match failure and continues (spec
// §4.8, §7).
func RunSetupCommands(workenvDir, packageName, version string, commands []SetupCommand, env []string, slotRef SlotRef, onEnumerateFailure func(match string, err error), logger hclog.Logger) error {
	for _, cmd := range commands {
		switch cmd.Type {
		case "write_file":
			if err := runWriteFile(workenvDir, packageName, version, cmd, slotRef); err != nil {
				return fmt.Errorf("workenv: write_file %q: %w", cmd.Path, err)
			}
		case "execute":
			if err := runExecute(workenvDir, packageName, version, cmd.Command, env, slotRef, logger); err != nil {
				return fmt.Errorf("workenv: execute %q: %w", cmd.Command, err)
			}
		case "enumerate_and_execute":
			if err := runEnumerateAndExecute(workenvDir, packageName, version, cmd, env, slotRef, onEnumerateFailure, logger); err != nil {
				return fmt.Errorf("workenv: enumerate_and_execute %q: %w", cmd.Pattern, err)
			}
		default:
			return fmt.Errorf("workenv: unknown setup command type %q", cmd.Type)
		}
	}
	return nil
}

func runWriteFile(workenvDir, packageName, version string, cmd SetupCommand, slotRef SlotRef) error {
	path := substituteCommandPlaceholders(cmd.Path, workenvDir, packageName, version, slotRef)
	content := substituteCommandPlaceholders(cmd.Content, workenvDir, packageName, version, slotRef)

	if !filepath.IsAbs(path) {
		path = filepath.Join(workenvDir, path)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ".extracted")
	}

	return writeFileAtomic(path, []byte(content), 0o644)
}

func runExecute(workenvDir, packageName, version, command string, env []string, slotRef SlotRef, logger hclog.Logger) error {
	resolved := substituteCommandPlaceholders(command, workenvDir, packageName, version, slotRef)
	args, err := shellparse.Split(resolved)
	if err != nil {
		return fmt.Errorf("tokenizing command: %w", err)
	}
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}
	args[0] = resolveExecutable(args[0], logger)

	var stdout, stderr bytes.Buffer
	c := exec.Command(args[0], args[1:]...)
	c.Dir = workenvDir
	c.Env = env
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		return fmt.Errorf("%w (stdout: %s, stderr: %s)", err, stdout.String(), stderr.String())
	}
	return nil
}

func runEnumerateAndExecute(workenvDir, packageName, version string, cmd SetupCommand, env []string, slotRef SlotRef, onFailure func(match string, err error), logger hclog.Logger) error {
	pattern := substituteCommandPlaceholders(cmd.Pattern, workenvDir, packageName, version, slotRef)
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(workenvDir, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob %q: %w", pattern, err)
	}

	for _, match := range matches {
		command := strings.ReplaceAll(cmd.Command, "{file}", match)
		command = strings.ReplaceAll(command, "{workenv}", workenvDir)

		if err := runExecute(workenvDir, packageName, version, command, env, slotRef, logger); err != nil {
			if onFailure != nil {
				onFailure(match, err)
			}
			continue
		}
	}
	return nil
}
