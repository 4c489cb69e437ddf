//go:build unix

package launcher

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func helperPlatform(args []string) int {
	switch args[0] {
	case "kill-self":
		sig := unix.SignalNum(args[1])
		_ = syscall.Kill(os.Getpid(), sig)
		time.Sleep(5 * time.Second)
		return 0
	case "wait-signal":
		want := unix.SignalNum(args[1])
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, want)
		fmt.Fprintln(os.Stdout, "ready")
		select {
		case <-ch:
			return 42
		case <-time.After(10 * time.Second):
			return 1
		}
	}
	return 2
}

func TestSpawnSignalledChild(t *testing.T) {
	bin, base := helperCommand(t)

	tests := []struct {
		signal   string
		wantCode int
	}{
		{"SIGTERM", 128 + int(syscall.SIGTERM)},
		{"SIGKILL", 137},
		{"SIGHUP", 129},
	}

	for _, tt := range tests {
		t.Run(tt.signal, func(t *testing.T) {
			l := newTestLauncher(new(bytes.Buffer))

			res, err := l.Spawn(context.Background(), bin, append(base, "kill-self", tt.signal), helperEnvironment(nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.signal, res.Signal)
		})
	}
}

func TestSpawnForwardsSIGTERM(t *testing.T) {
	bin, base := helperCommand(t)

	pr, pw := io.Pipe()
	ready := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) == "ready" {
				close(ready)
			}
		}
	}()

	l := New(
		WithStdio(bytes.NewReader(nil), pw, new(bytes.Buffer)),
		WithTerminal(func() bool { return true }),
	)

	go func() {
		select {
		case <-ready:
			// the launcher has registered for SIGTERM before starting the child
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
		case <-time.After(10 * time.Second):
		}
	}()

	res, err := l.Spawn(context.Background(), bin, append(base, "wait-signal", "SIGTERM"), helperEnvironment(nil))
	_ = pw.Close()

	require.NoError(t, err)
	assert.Equal(t, 42, res.ExitCode, "child should have caught the forwarded SIGTERM")
}

func TestSpawnNotExecutable(t *testing.T) {
	path := t.TempDir() + "/agent"
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644))

	l := newTestLauncher(new(bytes.Buffer))
	_, err := l.Spawn(context.Background(), path, nil, helperEnvironment(nil))

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.True(t, spawnErr.Permission())
	assert.Equal(t, 127, spawnErr.ExitCode())
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
}
