package workenv

import (
	"os"
	"path/filepath"
	"strings"
)

// CacheValidation mirrors the metadata document's cache_validation block
// (spec §3.4, §4.7): a workenv is reusable only if this is declared and
// its referenced file's content matches after substitution.
type CacheValidation struct {
	CheckFile       string
	ExpectedContent string
}

// substitutePlaceholders applies {workenv} then {version}, the order the
// original implementation uses.
func substitutePlaceholders(s, workenvDir, version string) string {
	s = strings.ReplaceAll(s, "{workenv}", workenvDir)
	s = strings.ReplaceAll(s, "{version}", version)
	return s
}

// IsCacheValid reports whether an existing workenv can be reused without
// re-extraction. Absent a cache_validation declaration, the cache is
// always considered invalid (spec §4.7: "absent declaration, always
// invalidated").
func IsCacheValid(workenvDir, version string, cv *CacheValidation) bool {
	if cv == nil || cv.CheckFile == "" {
		return false
	}

	checkPath := substitutePlaceholders(cv.CheckFile, workenvDir, version)
	if !filepath.IsAbs(checkPath) {
		checkPath = filepath.Join(workenvDir, checkPath)
	}

	data, err := os.ReadFile(checkPath)
	if err != nil {
		return false
	}

	expected := substitutePlaceholders(cv.ExpectedContent, workenvDir, version)
	return strings.TrimRight(string(data), "\n") == strings.TrimRight(expected, "\n")
}
