package otelenv

import (
	"sort"
	"strings"
)

// Env is an ordered set of environment variables. Keys keep the position of
// their first insertion; setting an existing key replaces its value in place.
type Env struct {
	keys   []string
	values map[string]string
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{values: make(map[string]string)}
}

// FromEnviron parses "KEY=value" entries as returned by os.Environ. Entries
// without "=" are ignored. A repeated key keeps its first position and its
// last value, matching how exec resolves duplicates.
func FromEnviron(environ []string) *Env {
	env := NewEnv()
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env.Set(k, v)
	}
	return env
}

// FromMap builds an environment with keys in sorted order.
func FromMap(m map[string]string) *Env {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := NewEnv()
	for _, k := range keys {
		env.Set(k, m[k])
	}
	return env
}

// Get returns the value for key and whether it is set.
func (e *Env) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.values[key]
	return v, ok
}

// Value returns the value for key, or "" when unset.
func (e *Env) Value(key string) string {
	v, _ := e.Get(key)
	return v
}

// Has reports whether key is set, even to an empty value.
func (e *Env) Has(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// Set assigns value to key.
func (e *Env) Set(key, value string) {
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// SetDefault assigns value only when key is unset. It reports whether the
// value was written.
func (e *Env) SetDefault(key, value string) bool {
	if e.Has(key) {
		return false
	}
	e.Set(key, value)
	return true
}

// Delete removes key.
func (e *Env) Delete(key string) {
	if !e.Has(key) {
		return
	}
	delete(e.values, key)
	for i, k := range e.keys {
		if k == key {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order.
func (e *Env) Keys() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.keys...)
}

// Len returns the number of variables.
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

// Clone returns an independent copy.
func (e *Env) Clone() *Env {
	out := NewEnv()
	if e == nil {
		return out
	}
	for _, k := range e.keys {
		out.Set(k, e.values[k])
	}
	return out
}

// Environ renders the environment as "KEY=value" entries for exec.Cmd.Env.
func (e *Env) Environ() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// Subset returns the named keys that are set. It is used for logging the
// variables smith manages without touching anything else in the environment.
func (e *Env) Subset(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := e.Get(k); ok {
			out[k] = v
		}
	}
	return out
}
