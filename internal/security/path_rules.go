package security

import (
	"path/filepath"
	"strings"
)

// pathRules screens file paths against the workspace sandbox.
type pathRules struct {
	workspaceRoot  string
	deniedPrefixes []string
}

func defaultPathRules(workspaceRoot string) pathRules {
	return pathRules{
		workspaceRoot: filepath.Clean(workspaceRoot),
		deniedPrefixes: []string{
			"/etc",
			"/sys",
			"/proc",
			"/boot",
			"/dev",
			"/root",
			"/var/spool/cron",
			"/usr/lib",
			"/usr/bin",
			"/bin",
			"/sbin",
		},
	}
}

func (r pathRules) check(path string) Result {
	if path == "" {
		return denied("empty path", "")
	}
	if strings.Contains(path, "\x00") {
		return denied("null byte in path", "")
	}

	// Absolute paths must stay under the workspace root; everything on the
	// system deny-list is refused regardless of root.
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		for _, prefix := range r.deniedPrefixes {
			if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
				return denied("access to system path not allowed", prefix)
			}
		}
		if !isWithin(clean, r.workspaceRoot) {
			return denied("absolute path outside workspace", "")
		}
		return allowed("path passed validation")
	}

	// Relative paths are resolved against the workspace root; any traversal
	// that escapes it is refused.
	joined := filepath.Clean(filepath.Join(r.workspaceRoot, path))
	if !isWithin(joined, r.workspaceRoot) {
		return denied("path traversal outside workspace", "..")
	}

	for _, prefix := range r.deniedPrefixes {
		if strings.HasPrefix(joined, prefix+string(filepath.Separator)) {
			return denied("access to system path not allowed", prefix)
		}
	}

	return allowed("path passed validation")
}

// isWithin checks if target is base or inside base.
func isWithin(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
