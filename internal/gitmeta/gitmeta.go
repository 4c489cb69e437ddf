// Package gitmeta reads repository identity from a working directory.
//
// Every query is independent and best-effort: a directory that is not a
// repository, a repository without an origin remote, or a detached HEAD each
// leave only the affected field absent. Collect never fails.
package gitmeta

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each individual git invocation.
const DefaultTimeout = 2 * time.Second

// Field is one piece of repository metadata. It either carries a value or the
// error that explains why the value is absent.
type Field[T any] struct {
	value T
	ok    bool
	err   error
}

// Present returns a field holding v.
func Present[T any](v T) Field[T] {
	return Field[T]{value: v, ok: true}
}

// Absent returns an empty field. err may be nil when absence is expected
// (for example a detached HEAD has no branch).
func Absent[T any](err error) Field[T] {
	return Field[T]{err: err}
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.ok
}

// OK reports whether the field holds a value.
func (f Field[T]) OK() bool { return f.ok }

// Err returns the reason the field is absent, if any.
func (f Field[T]) Err() error { return f.err }

// Metadata describes the repository that contains a directory.
type Metadata struct {
	Root   Field[string]
	Branch Field[string]
	Remote Field[string]
	Dirty  Field[bool]
}

// Empty reports whether no field was collected.
func (m Metadata) Empty() bool {
	return !m.Root.OK() && !m.Branch.OK() && !m.Remote.OK() && !m.Dirty.OK()
}

// Errors returns the per-field collection errors, in field order.
func (m Metadata) Errors() []error {
	var errs []error
	for _, err := range []error{m.Root.Err(), m.Branch.Err(), m.Remote.Err(), m.Dirty.Err()} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CollectionError records a git query that did not produce a value.
type CollectionError struct {
	Field string
	Args  []string
	Err   error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("git %s (%s): %v", strings.Join(e.Args, " "), e.Field, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// Runner executes git with the given arguments inside dir.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct {
	// Binary overrides the executable name. Defaults to "git".
	Binary string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// Collector gathers Metadata.
type Collector struct {
	Runner  Runner
	Timeout time.Duration
}

// NewCollector returns a collector that shells out to git.
func NewCollector() *Collector {
	return &Collector{Runner: ExecRunner{}, Timeout: DefaultTimeout}
}

var (
	argsRoot   = []string{"rev-parse", "--show-toplevel"}
	argsBranch = []string{"symbolic-ref", "--short", "-q", "HEAD"}
	argsRemote = []string{"config", "--get", "remote.origin.url"}
	argsStatus = []string{"status", "--porcelain"}
)

// Collect queries git concurrently and returns whatever it could learn about
// dir. Fields that could not be read are absent.
func (c *Collector) Collect(ctx context.Context, dir string) Metadata {
	var (
		meta Metadata
		wg   sync.WaitGroup
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		meta.Root = c.text(ctx, dir, "root", argsRoot)
	}()
	go func() {
		defer wg.Done()
		meta.Branch = c.text(ctx, dir, "branch", argsBranch)
	}()
	go func() {
		defer wg.Done()
		remote := c.text(ctx, dir, "remote", argsRemote)
		if v, ok := remote.Get(); ok {
			remote = Present(StripCredentials(v))
		}
		meta.Remote = remote
	}()
	go func() {
		defer wg.Done()
		out, err := c.run(ctx, dir, argsStatus)
		if err != nil {
			meta.Dirty = Absent[bool](&CollectionError{Field: "dirty", Args: argsStatus, Err: err})
			return
		}
		meta.Dirty = Present(len(bytes.TrimSpace(out)) > 0)
	}()
	wg.Wait()

	return meta
}

func (c *Collector) text(ctx context.Context, dir, field string, args []string) Field[string] {
	out, err := c.run(ctx, dir, args)
	if err != nil {
		return Absent[string](&CollectionError{Field: field, Args: args, Err: err})
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return Absent[string](nil)
	}
	return Present(v)
}

func (c *Collector) run(ctx context.Context, dir string, args []string) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runner := c.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return runner.Run(ctx, dir, args...)
}

// StripCredentials removes userinfo from URL-style remotes so tokens never
// end up in telemetry. scp-style remotes (git@host:org/repo) are returned
// unchanged.
func StripCredentials(remote string) string {
	u, err := url.Parse(remote)
	if err != nil || u.Scheme == "" || u.User == nil {
		return remote
	}
	// ssh://git@host keeps its user; it is not a secret.
	if _, hasPassword := u.User.Password(); !hasPassword && u.Scheme != "http" && u.Scheme != "https" {
		return remote
	}
	u.User = nil
	return u.String()
}
