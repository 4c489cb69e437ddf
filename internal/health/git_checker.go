package health

import (
	"context"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/smith/internal/gitmeta"
)

// GitChecker reports what repository metadata a run started in dir would
// carry. git only labels telemetry, so every problem is at most degraded.
type GitChecker struct {
	dir    string
	runner gitmeta.Runner
}

// NewGitChecker checks git against dir; "" is the working directory.
func NewGitChecker(dir string) *GitChecker {
	return &GitChecker{dir: dir, runner: gitmeta.ExecRunner{}}
}

// Name implements Checker.
func (c *GitChecker) Name() string { return "git" }

// Check implements Checker.
func (c *GitChecker) Check(ctx context.Context) *Result {
	out, err := c.runner.Run(ctx, c.dir, "--version")
	if err != nil {
		return Degraded("git not available; runs will not carry repository metadata").
			WithDetail("error", err.Error()).
			WithDetail("suggestion", "Install Git from https://git-scm.com/downloads")
	}

	version := parseGitVersion(string(out))
	if major, ok := majorVersion(version); !ok || major < 2 {
		// symbolic-ref -q and rev-parse --show-toplevel need git 2.x.
		return Degraded("git 2.0 or later is required for branch metadata").
			WithDetail("version_output", strings.TrimSpace(string(out))).
			WithDetail("suggestion", "Upgrade Git to version 2.0 or later")
	}

	collector := gitmeta.Collector{Runner: c.runner, Timeout: gitmeta.DefaultTimeout}
	meta := collector.Collect(ctx, c.dir)
	root, inRepo := meta.Root.Get()
	if !inRepo {
		return Healthy("git "+version+"; not inside a repository").
			WithDetail("version", version)
	}

	result := Healthy("git "+version).
		WithDetail("version", version).
		WithDetail("repository", root)
	if branch, ok := meta.Branch.Get(); ok {
		result.WithDetail("branch", branch)
	}
	if remote, ok := meta.Remote.Get(); ok {
		result.WithDetail("remote", remote)
	}
	return result
}

// parseGitVersion extracts "2.42.0" from "git version 2.42.0.windows.1".
func parseGitVersion(output string) string {
	fields := strings.Fields(output)
	if len(fields) < 3 || fields[0] != "git" || fields[1] != "version" {
		return ""
	}

	var parts []string
	for _, p := range strings.Split(fields[2], ".") {
		if _, err := strconv.Atoi(p); err != nil {
			break
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ".")
}

func majorVersion(version string) (int, bool) {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	return major, err == nil
}
