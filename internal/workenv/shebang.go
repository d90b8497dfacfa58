package workenv

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// fixShebangs rewrites the shebang line of every script directly under
// binDir that embeds oldPrefix, replacing it with newPrefix. Slot
// content is built with shebangs referencing the literal "{workenv}"
// placeholder (the same token used elsewhere in setup commands and
// cache validation); once a slot lands at its real runtime path, those
// placeholders must be resolved or the interpreter path in the script
// header is invalid (spec §4.7 step 3, §4.8 placeholder substitution).
func fixShebangs(binDir, oldPrefix, newPrefix string, logger hclog.Logger) error {
	if _, err := os.Stat(binDir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(binDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		scriptPath := filepath.Join(binDir, entry.Name())

		file, err := os.Open(scriptPath)
		if err != nil {
			continue
		}
		header := make([]byte, 2)
		_, readErr := file.Read(header)
		file.Close()
		if readErr != nil || string(header) != "#!" {
			continue
		}

		content, err := os.ReadFile(scriptPath)
		if err != nil {
			continue
		}

		lines := strings.SplitN(string(content), "\n", 2)
		firstLine := lines[0]
		if !strings.Contains(firstLine, oldPrefix) {
			continue
		}

		newFirstLine := strings.ReplaceAll(firstLine, oldPrefix, newPrefix)
		newContent := newFirstLine + "\n"
		if len(lines) > 1 {
			newContent = newFirstLine + "\n" + lines[1]
		}

		if err := os.WriteFile(scriptPath, []byte(newContent), entry.Type().Perm()); err != nil {
			logger.Debug("failed to fix shebang", "script", entry.Name(), "error", err)
		} else {
			logger.Debug("fixed shebang", "script", entry.Name())
		}
	}

	return nil
}

// resolveExecutable resolves an executable name for cross-platform
// `execute`/`enumerate_and_execute` setup commands (spec §4.8): Unix
// absolute paths are reduced to a basename and looked up on PATH, and a
// handful of common Unix command names fall back to their Windows
// counterparts when the literal name isn't found.
func resolveExecutable(executable string, logger hclog.Logger) string {
	execName := executable
	if strings.HasPrefix(executable, "/") {
		execName = filepath.Base(executable)
		logger.Debug("extracted basename from unix path", "original", executable, "basename", execName)
	}

	if resolved, err := exec.LookPath(execName); err == nil {
		logger.Debug("resolved executable via PATH", "input", executable, "resolved", resolved)
		return resolved
	}

	if runtime.GOOS == "windows" {
		var fallback string
		switch execName {
		case "python3", "python3.exe":
			fallback = "python.exe"
		case "sh", "sh.exe":
			fallback = "bash.exe"
		}
		if fallback != "" {
			if resolved, err := exec.LookPath(fallback); err == nil {
				logger.Debug("resolved executable via windows fallback", "input", executable, "fallback", fallback, "resolved", resolved)
				return resolved
			}
		}
	}

	if execName != executable {
		logger.Debug("could not resolve executable, using basename", "input", executable, "basename", execName)
		return execName
	}

	logger.Debug("could not resolve executable in PATH, using as-is", "executable", executable)
	return executable
}
