// Copyright (c) 2019 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub013/pkg/nsutils"
)

// SharedMount describes one cross-container bind mount spec.md §4.1.1
// names: a directory visible in a named source container's mount
// namespace that should be cloned into the destination's.
type SharedMount struct {
	// SourceContainerID names the container whose mount namespace holds
	// Source. Resolved to an init pid once per SetupSharedMounts call and
	// then cached for the remainder of that call (see Open Question
	// decision recorded in DESIGN.md).
	SourceContainerID string
	Source            string
	Destination       string
}

// resolveInitPid looks up a container's init pid, used to build the
// /proc/<pid>/... paths shared-mount setup needs.
func (s *Sandbox) resolveInitPid(containerID string) (int, error) {
	c, err := s.GetContainer(containerID)
	if err != nil {
		return 0, err
	}
	if c.InitProcessPid <= 0 {
		return 0, errInitPidInvalid
	}
	return c.InitProcessPid, nil
}

// waitForMountEntry polls /proc/<pid>/mounts until mountpoint appears,
// implementing spec.md §4.1.1's "retrying every 100ms for up to 10s"
// wait-for-source behavior.
func waitForMountEntry(pid int, mountpoint string, pollInterval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	path := fmt.Sprintf("/proc/%d/mounts", pid)

	for {
		if found, err := mountpointPresent(path, mountpoint); err == nil && found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s to appear in %s", mountpoint, path)
		}
		time.Sleep(pollInterval)
	}
}

func mountpointPresent(procMounts, mountpoint string) (bool, error) {
	f, err := os.Open(procMounts)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == mountpoint {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// SetupSharedMounts implements spec.md §4.1.1: each mount is cloned from
// its source container's namespace into destContainerID's mount
// namespace on a dedicated, locked OS thread, so the unshare/setns calls
// this requires never leak into goroutines sharing that thread. Per-mount
// failures are logged and counted but never fail the call; only a panic
// on the worker thread is fatal, per the Failure semantics paragraph.
func (s *Sandbox) SetupSharedMounts(destContainerID string, mounts []SharedMount) error {
	initPids := make(map[string]int)
	for _, m := range mounts {
		if _, ok := initPids[m.SourceContainerID]; ok {
			continue
		}
		if pid, err := s.resolveInitPid(m.SourceContainerID); err == nil {
			initPids[m.SourceContainerID] = pid
		}
	}

	// If no source resolves, return success immediately.
	if len(initPids) == 0 {
		return nil
	}

	initMntns, err := nsutils.Pin(os.Getpid(), "mnt")
	if err != nil {
		return err
	}
	defer initMntns.Close()

	destPid, err := s.resolveInitPid(destContainerID)
	if err != nil {
		return err
	}
	destMntns, err := nsutils.Pin(destPid, "mnt")
	if err != nil {
		return err
	}
	defer destMntns.Close()

	return nsutils.RunOnLockedThread(func() error {
		if err := nsutils.UnshareMountNS(); err != nil {
			return err
		}

		for _, m := range mounts {
			pid, ok := initPids[m.SourceContainerID]
			if !ok {
				continue
			}

			if err := s.cloneSharedMount(initMntns, destMntns, pid, m); err != nil {
				s.logSharedMountFailure(m, err)
				s.bumpSharedMountFailure()
			}
		}

		return nil
	})
}

// cloneSharedMount performs the namespace dance spec.md §4.1.1 step 4
// names: switch back to the agent's own mount namespace to poll for the
// source path, switch into the source container's mount namespace to
// clone the subtree, then switch into the destination container's mount
// namespace to land it. The calling goroutine must already be pinned to
// its OS thread with a private mount namespace (see RunOnLockedThread).
func (s *Sandbox) cloneSharedMount(initMntns, destMntns *os.File, sourcePid int, m SharedMount) error {
	if err := nsutils.Enter(initMntns, unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("switch to initial mount namespace failed: %w", err)
	}

	if err := waitForMountEntry(sourcePid, m.Source, s.Config.SharedMountPollInterval, s.Config.SharedMountTimeout); err != nil {
		return err
	}

	srcMntns, err := nsutils.Pin(sourcePid, "mnt")
	if err != nil {
		return err
	}
	defer srcMntns.Close()

	if err := nsutils.Enter(srcMntns, unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("switch to source mount namespace failed: %w", err)
	}

	treeFd, err := nsutils.OpenTreeClone(m.Source)
	if err != nil {
		return err
	}
	defer func() { _ = os.NewFile(uintptr(treeFd), m.Source).Close() }()

	if err := nsutils.Enter(destMntns, unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("switch to destination mount namespace failed: %w", err)
	}

	if err := os.MkdirAll(m.Destination, 0o755); err != nil {
		return fmt.Errorf("failed to create shared mount destination %s: %w", m.Destination, err)
	}

	return nsutils.MoveMountTo(treeFd, m.Destination)
}

func (s *Sandbox) logSharedMountFailure(m SharedMount, err error) {
	sandboxLog.WithError(err).WithFields(logrus.Fields{
		"source":      m.Source,
		"destination": m.Destination,
	}).Warn("shared mount failed, skipping")
}

func (s *Sandbox) bumpSharedMountFailure() {
	if s.Metrics != nil {
		s.Metrics.SharedMountFailures.Inc()
	}
}
