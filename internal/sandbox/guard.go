// Package sandbox guards every side-effecting tool: file paths are confined
// to the workspace and shell commands are screened against a regex blacklist.
// The guard is pure and stateless after construction.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrDenied marks a sandbox denial. Tool results wrap it as
// "error: Access denied: ..." so the model can recover.
var ErrDenied = errors.New("access denied")

// defaultDenyPatterns screens destructive commands. Patterns are matched
// case-insensitively against the whole command line.
var defaultDenyPatterns = []string{
	// recursive deletion
	`\brm\s+(-\w*\s+)*-\w*[rf]\w*[rf]?\b`,
	`\brm\s+.*(-rf|-fr)\b`,
	`\bdel\s+/[fq]\b`,
	`\brmdir\s+/s\b`,
	// disk formatting / raw writes
	`\bmkfs\b`,
	`\bformat\s+[a-z]?:`,
	`\bdd\s+if=`,
	`>\s*/dev/sd[a-z]`,
	// system lifecycle
	`\bshutdown\b`,
	`\breboot\b`,
	`\bpoweroff\b`,
	`\bhalt\b`,
	// fork bomb
	`:\(\)\s*\{.*\};\s*:`,
	// remote-script execution
	`\bcurl\b.*\|\s*(ba|z)?sh\b`,
	`\bwget\b.*\|\s*(ba|z)?sh\b`,
	// privilege escalation
	`\bsudo\b`,
	`\bsu\s`,
	// forced kills
	`\bkillall\s+-9\b`,
	`\bpkill\s+-9\b`,
	// crontab wipe
	`\bcrontab\s+-r\b`,
	// library preload injection
	`\bexport\s+LD_PRELOAD\b`,
	`\bLD_PRELOAD\s*=`,
	// kernel module ops
	`\b(insmod|rmmod|modprobe)\b`,
}

// Guard performs path confinement and command screening.
type Guard struct {
	workspace string // canonical workspace root; "" disables confinement
	restrict  bool
	patterns  []*regexp.Regexp
}

// NewGuard builds a guard for workspace. When restrict is false CheckFilePath
// allows everything. A non-nil blacklist fully replaces the default command
// patterns. Patterns that fail to compile are logged and skipped.
func NewGuard(workspace string, restrict bool, blacklist []string) *Guard {
	if blacklist == nil {
		blacklist = defaultDenyPatterns
	}

	patterns := make([]*regexp.Regexp, 0, len(blacklist))
	for _, raw := range blacklist {
		re, err := regexp.Compile(`(?i)` + raw)
		if err != nil {
			slog.Warn("sandbox: invalid deny pattern skipped", "pattern", raw, "error", err)
			continue
		}
		patterns = append(patterns, re)
	}

	canonical := workspace
	if workspace != "" {
		abs, err := filepath.Abs(expandHome(workspace))
		if err == nil {
			if real, err := filepath.EvalSymlinks(abs); err == nil {
				canonical = real
			} else {
				canonical = abs
			}
		}
	}

	return &Guard{workspace: canonical, restrict: restrict, patterns: patterns}
}

// Workspace returns the canonical workspace root.
func (g *Guard) Workspace() string { return g.workspace }

// CheckFilePath resolves p (tilde-expanded, symlink-normalized) and requires
// it to be a descendant of the workspace root when confinement is enabled.
// Returns the resolved absolute path.
func (g *Guard) CheckFilePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrDenied)
	}

	candidate := expandHome(p)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(g.workspace, candidate)
	}
	candidate = filepath.Clean(candidate)

	if !g.restrict {
		return candidate, nil
	}

	real, err := resolveExisting(candidate)
	if err != nil {
		slog.Warn("security.path_resolve_failed", "path", p, "error", err)
		return "", fmt.Errorf("%w: cannot resolve path %s", ErrDenied, p)
	}

	if !isPathInside(real, g.workspace) {
		slog.Warn("security.path_escape", "path", p, "resolved", real, "workspace", g.workspace)
		return "", fmt.Errorf("%w: path outside workspace: %s", ErrDenied, p)
	}
	return real, nil
}

// CheckCommand screens a shell command against the blacklist.
func (g *Guard) CheckCommand(cmd string) error {
	for _, re := range g.patterns {
		if re.MatchString(cmd) {
			slog.Warn("security.command_denied", "pattern", re.String())
			return fmt.Errorf("%w: command matches blocked pattern %s", ErrDenied, re.String())
		}
	}
	return nil
}

// CheckWorkingDir validates an exec working directory the same way file
// paths are validated.
func (g *Guard) CheckWorkingDir(dir string) (string, error) {
	if dir == "" {
		return g.workspace, nil
	}
	return g.CheckFilePath(dir)
}

// resolveExisting canonicalizes a path, resolving symlinks through the
// deepest existing ancestor so non-existent targets (files about to be
// created) still validate against the real parent directory.
func resolveExisting(path string) (string, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real, nil
	}

	parentReal, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		if os.IsNotExist(err) {
			// Walk up to the deepest existing ancestor.
			current := filepath.Dir(path)
			var tail []string
			tail = append(tail, filepath.Base(path))
			for {
				parent := filepath.Dir(current)
				if parent == current {
					return filepath.Clean(path), nil
				}
				tail = append([]string{filepath.Base(current)}, tail...)
				current = parent
				if real, err := filepath.EvalSymlinks(current); err == nil {
					return filepath.Join(append([]string{real}, tail...)...), nil
				}
			}
		}
		return "", err
	}
	return filepath.Join(parentReal, filepath.Base(path)), nil
}

func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
