// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package client

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Launch defaults.
const (
	DefaultReadyTimeout = 10 * time.Second
	DefaultKillTimeout  = 5 * time.Second
)

// LaunchConfig describes how to start a plugin binary.
type LaunchConfig struct {
	// Config is the framework config, sent as the positional JSON argument.
	// A nil map still selects served mode.
	Config map[string]any
	// Args are extra flags placed before the config argument.
	Args []string
	// Env is appended to the current environment.
	Env []string
	// Stderr receives the plugin's logs; discarded when nil.
	Stderr io.Writer
	Dial   DialConfig
	// ReadyTimeout bounds the wait for the preamble and the first Ping.
	ReadyTimeout time.Duration
}

// Process is a running plugin with an open client.
type Process struct {
	*Client
	Preamble Preamble

	cmd      *exec.Cmd
	waitOnce sync.Once
	waitErr  error
	exited   chan struct{}
}

// Launch starts the plugin at path, reads its preamble, dials it and pings
// with exponential backoff until it answers.
func Launch(ctx context.Context, path string, cfg LaunchConfig) (*Process, error) {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.Config == nil {
		cfg.Config = map[string]any{}
	}
	doc, err := json.Marshal(cfg.Config)
	if err != nil {
		return nil, oops.Code("INVALID_CONFIG").Wrapf(err, "encode framework config")
	}

	cmd := exec.Command(path, append(append([]string(nil), cfg.Args...), string(doc))...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}
	// Wait must not close the read end before the preamble is read.
	stdout, w, err := os.Pipe()
	if err != nil {
		return nil, oops.Code("LAUNCH_FAILED").With("path", path).Wrap(err)
	}
	cmd.Stdout = w
	err = cmd.Start()
	_ = w.Close()
	if err != nil {
		_ = stdout.Close()
		return nil, oops.Code("LAUNCH_FAILED").With("path", path).Wrap(err)
	}

	p := &Process{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	readyCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	defer cancel()

	pre, err := readWithContext(readyCtx, stdout)
	if err != nil {
		_ = stdout.Close()
		p.terminate()
		return nil, oops.With("path", path).Wrap(err)
	}
	p.Preamble = pre
	go func() {
		_, _ = io.Copy(io.Discard, stdout)
		_ = stdout.Close()
	}()

	c, err := Dial(readyCtx, pre, cfg.Dial)
	if err != nil {
		p.terminate()
		return nil, err
	}
	p.Client = c

	backoff := retry.WithMaxDuration(cfg.ReadyTimeout, retry.NewExponential(25*time.Millisecond))
	err = retry.Do(readyCtx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := c.Ping(callCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = c.Close()
		p.terminate()
		return nil, oops.Code("PLUGIN_NOT_READY").With("addr", pre.ListenAddress).Wrap(err)
	}
	return p, nil
}

func readWithContext(ctx context.Context, r io.Reader) (Preamble, error) {
	type result struct {
		pre Preamble
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pre, err := ReadPreamble(r)
		ch <- result{pre, err}
	}()
	select {
	case res := <-ch:
		return res.pre, res.err
	case <-ctx.Done():
		return Preamble{}, oops.Code("PLUGIN_NOT_READY").Wrapf(ctx.Err(), "waiting for preamble")
	}
}

// Pid returns the plugin's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed when the plugin process ends.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the process exits and returns its exit status.
func (p *Process) Wait() error {
	<-p.exited
	return p.waitErr
}

// ExitCode returns the exit code, or -1 while the process is running.
func (p *Process) ExitCode() int {
	select {
	case <-p.exited:
		return p.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Stop sends Kill and waits up to DefaultKillTimeout for a clean exit,
// then kills the process.
func (p *Process) Stop(ctx context.Context) error {
	var killErr error
	if p.Client != nil {
		killErr = p.Kill(ctx)
		defer p.Close()
	}
	select {
	case <-p.exited:
		return killErr
	case <-time.After(DefaultKillTimeout):
		p.terminate()
		return oops.Code("KILL_TIMEOUT").With("pid", p.Pid()).Errorf("plugin did not exit after Kill")
	}
}

func (p *Process) terminate() {
	p.waitOnce.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		_ = p.cmd.Process.Signal(os.Interrupt)
		select {
		case <-p.exited:
		case <-time.After(time.Second):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
	})
}
