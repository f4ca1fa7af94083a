// Copyright (c) 2019 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"fmt"
	"os"

	"github.com/kata-containers/kata-containers-sub013/pkg/nsutils"
)

// selfPid is a seam over os.Getpid so tests could substitute it if ever
// needed; kept as a plain function rather than a package var since nothing
// in this module currently overrides it.
func selfPid() int {
	return os.Getpid()
}

// SetupSharedNamespaces implements spec.md §3/§4.1's shared UTS/IPC
// namespace pins: it pins the current (agent init) process's own UTS and
// IPC namespaces exactly once, so containers can later join them via
// nsutils.Enter. Calling it more than once is a no-op on the namespaces
// already pinned.
func (s *Sandbox) SetupSharedNamespaces() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sharedUTSNS == nil {
		f, err := nsutils.Pin(selfPid(), "uts")
		if err != nil {
			return fmt.Errorf("failed to pin shared uts namespace: %w", err)
		}
		s.sharedUTSNS = f
	}

	if s.sharedIPCNS == nil {
		f, err := nsutils.Pin(selfPid(), "ipc")
		if err != nil {
			return fmt.Errorf("failed to pin shared ipc namespace: %w", err)
		}
		s.sharedIPCNS = f
	}

	return nil
}

// UpdateSharedPidns implements spec.md §4.1's update_shared_pidns: the
// sandbox's first container to start becomes the pid namespace all later
// containers join. It only has effect when the sandbox pidns is not yet
// set and no containers have been recorded yet; otherwise it is a silent
// no-op, matching the Rust source's fall-through to Ok(()) when that
// outer condition is false. The only error case is an invalid init pid
// on the container that would populate the shared pidns.
func (s *Sandbox) UpdateSharedPidns(c *Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sandboxPidNS != nil || len(s.containers) != 0 {
		return nil
	}
	if c.InitProcessPid <= 0 {
		return errInitPidInvalid
	}

	f, err := nsutils.Pin(c.InitProcessPid, "pid")
	if err != nil {
		return fmt.Errorf("failed to pin sandbox pid namespace: %w", err)
	}
	s.sandboxPidNS = f
	return nil
}

// SandboxPidns returns the pinned shared pid namespace file, if any.
func (s *Sandbox) SandboxPidns() (*os.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sandboxPidNS, s.sandboxPidNS != nil
}
