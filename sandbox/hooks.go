// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"
)

// marshalState renders an OCI state document for feeding to a hook's stdin.
func marshalState(state *specs.State) (io.Reader, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal hook state")
	}
	return bytes.NewReader(data), nil
}

// The hookType* constants name the fixed layout original_source/src/agent/src/mount.rs's
// hook discovery scans: one subdirectory per OCI hook phase, each holding
// executables named arbitrarily but invoked with argv[0] == their own
// basename and argv[1] == the phase name.
const (
	hookTypePreStart  = "prestart"
	hookTypePostStart = "poststart"
	hookTypePostStop  = "poststop"
)

// Hooks holds the three OCI hook phases discovered under a hook directory.
// A phase is nil when its subdirectory is absent or unreadable, and an
// empty (non-nil) slice when the subdirectory exists but holds nothing
// executable, so callers can tell "not configured" from "configured empty".
type Hooks struct {
	PreStart  []specs.Hook
	PostStart []specs.Hook
	PostStop  []specs.Hook
}

// AddHooks scans dir for the three phase subdirectories and returns the
// discovered Hooks. It implements spec.md's Testable Property #2: a hook
// candidate must be a regular file, not a symlink, with at least one
// executable bit set in its mode; argv is [basename, phase].
func AddHooks(dir string) (*Hooks, error) {
	h := &Hooks{}

	preStart, err := scanHookDir(dir, hookTypePreStart)
	if err != nil {
		return nil, err
	}
	h.PreStart = preStart

	postStart, err := scanHookDir(dir, hookTypePostStart)
	if err != nil {
		return nil, err
	}
	h.PostStart = postStart

	postStop, err := scanHookDir(dir, hookTypePostStop)
	if err != nil {
		return nil, err
	}
	h.PostStop = postStop

	return h, nil
}

func scanHookDir(baseDir, phase string) ([]specs.Hook, error) {
	dir := filepath.Join(baseDir, phase)

	// Any read failure (absent, permission-denied, ...) yields an absent
	// hook slot rather than a hard error, matching the Rust source's
	// `if let Ok(hook) = self.find_hooks(...)`.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}

	hooks := make([]specs.Hook, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			continue
		}
		if info.Mode().Perm()&0111 == 0 {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		hooks = append(hooks, specs.Hook{
			Path: path,
			Args: []string{entry.Name(), phase},
		})
	}

	return hooks, nil
}

// runHook invokes a single OCI hook, feeding it state on stdin the way
// kata-containers/src/runtime/pkg/katautils/hook.go's runHook does.
func runHook(ctx context.Context, hook specs.Hook, state *specs.State) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, hook.Path, hook.Args...)
	cmd.Env = hook.Env
	cmd.Stdin = stateJSON

	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "hook %s failed: %s", hook.Path, string(out))
	}
	return nil
}

// runHooks runs every hook in hooks sequentially, stopping at the first
// failure.
func runHooks(ctx context.Context, hooks []specs.Hook, state *specs.State) error {
	for _, hook := range hooks {
		if err := runHook(ctx, hook, state); err != nil {
			return err
		}
	}
	return nil
}
