// Package envlayer implements the runtime environment isolator of spec
// §4.9: filtering and augmenting the process environment before a
// payload is exec'd, as a sequence of pass/unset/map/set operations
// followed by a platform layer that is always applied last and cannot
// be overridden.
package envlayer

import (
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Spec is the declarative runtime.env document of spec §3.4/§4.9.
type Spec struct {
	Pass  []string          // exact names or glob patterns to preserve; "*" protects every inherited variable from unset and map
	Unset []string          // exact names or glob patterns to remove, unless pass-protected
	Map   map[string]string // old -> new renames, skipped if old is pass-protected
	Set   map[string]string // assignments, applied last and overwrite anything prior
}

// DefaultUnset lists the variables unset by default whenever isolation
// is active (spec §4.9 "Defaults"). The launcher uses this list on its
// own when no runtime.env is given and merges it into an explicit
// runtime.env unset list unless isolated is false.
func DefaultUnset() []string {
	return []string{"PYTHONPATH", "UV_PROJECT_ENVIRONMENT", "PYTHONHOME", "UV_CACHE_DIR", "VIRTUAL_ENV"}
}

func toMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, e := range env {
		if k, v, ok := strings.Cut(e, "="); ok {
			m[k] = v
		}
	}
	return m
}

func toSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// Apply runs base through spec's pass/unset/map/set pipeline in that
// declared order (spec §4.9), logging a non-fatal warning for any
// pass-declared required variable absent from the inherited env.
func Apply(base []string, spec Spec, logger hclog.Logger) []string {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	env := toMap(base)

	preserve := make(map[string]bool)
	for _, pattern := range spec.Pass {
		if pattern == "*" {
			for k := range env {
				preserve[k] = true
			}
			continue
		}
		if isGlob(pattern) {
			for k := range env {
				if matched, _ := filepath.Match(pattern, k); matched {
					preserve[k] = true
				}
			}
			continue
		}
		if _, ok := env[pattern]; ok {
			preserve[pattern] = true
		}
	}

	for _, pattern := range spec.Unset {
		switch {
		case pattern == "*":
			for k := range env {
				if !preserve[k] {
					delete(env, k)
				}
			}
		case isGlob(pattern):
			for k := range env {
				if preserve[k] {
					continue
				}
				if matched, _ := filepath.Match(pattern, k); matched {
					delete(env, k)
				}
			}
		default:
			if !preserve[pattern] {
				delete(env, pattern)
			}
		}
	}

	for from, to := range spec.Map {
		if preserve[from] {
			continue
		}
		if value, ok := env[from]; ok {
			env[to] = value
			if from != to {
				delete(env, from)
			}
		}
	}

	for key, value := range spec.Set {
		env[key] = value
	}

	for _, pattern := range spec.Pass {
		if pattern == "*" {
			continue
		}
		if isGlob(pattern) {
			found := false
			for k := range env {
				if matched, _ := filepath.Match(pattern, k); matched {
					found = true
					break
				}
			}
			if !found {
				logger.Warn("no environment variables match required pattern", "pattern", pattern)
			}
			continue
		}
		if _, ok := env[pattern]; !ok {
			logger.Warn("required environment variable not found", "name", pattern)
		}
	}

	return toSlice(env)
}

// WithWorkenvPath prepends {workenvDir}/bin to PATH, the workenv-specific
// layer of spec §4.9's composition.
func WithWorkenvPath(env []string, workenvDir string) []string {
	m := toMap(env)
	binDir := filepath.Join(workenvDir, "bin")
	if existing, ok := m["PATH"]; ok && existing != "" {
		m["PATH"] = binDir + string(filepath.ListSeparator) + existing
	} else {
		m["PATH"] = binDir
	}
	return toSlice(m)
}

// WithOverrides applies an unconditional key=value overlay — the
// execution-overrides layer.
func WithOverrides(env []string, overrides map[string]string) []string {
	m := toMap(env)
	for k, v := range overrides {
		m[k] = v
	}
	return toSlice(m)
}

// Compose runs the full five-layer composition of spec §4.9: base env,
// runtime-env spec, workenv PATH prepend, execution overrides, then the
// platform layer (always last, un-overridable).
func Compose(base []string, spec Spec, workenvDir string, overrides map[string]string, logger hclog.Logger) []string {
	env := Apply(base, spec, logger)
	env = WithWorkenvPath(env, workenvDir)
	env = WithOverrides(env, overrides)
	env = WithOverrides(env, PlatformLayer())
	return env
}
