// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// skipIfNotRoot matches the teacher's virtcontainers test convention of
// skipping namespace-manipulating tests under a non-root CI user.
func skipIfNotRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("test requires root to unshare a mount namespace")
	}
}

func TestMountpointPresent(t *testing.T) {
	dir := t.TempDir()
	mountsFile := filepath.Join(dir, "mounts")
	content := "proc /proc proc rw 0 0\ntmpfs /run/kata/shared tmpfs rw 0 0\n"
	require.NoError(t, os.WriteFile(mountsFile, []byte(content), 0644))

	found, err := mountpointPresent(mountsFile, "/run/kata/shared")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = mountpointPresent(mountsFile, "/nowhere")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestSetupSharedMountsUnknownSourceReturnsNil confirms a shared mount
// naming an unknown source container is silently skipped (no source
// resolves, so the call returns success immediately) per spec.md
// §4.1.1 step 1 and Testable Property/Scenario S10.
func TestSetupSharedMountsUnknownSourceReturnsNil(t *testing.T) {
	s := newTestSandbox()
	err := s.SetupSharedMounts("dst", []SharedMount{
		{SourceContainerID: "missing", Source: "/a", Destination: "/b"},
	})
	assert.NoError(t, err)
}

// TestSetupSharedMountsClonesIntoDestination exercises the full
// namespace-switch sequence spec.md §4.1.1 step 4 names: this process's
// own pid stands in for both the source and destination container, so
// the clone/move-mount round-trips back into the same mount namespace it
// started from, but every setns/unshare/open_tree/move_mount call this
// test drives is the genuine syscall.
func TestSetupSharedMountsClonesIntoDestination(t *testing.T) {
	skipIfNotRoot(t)

	srcDir := t.TempDir()
	marker := filepath.Join(srcDir, "marker")
	require.NoError(t, os.WriteFile(marker, []byte("shared"), 0644))

	dstDir := filepath.Join(t.TempDir(), "dst")

	require.NoError(t, unix.Mount(srcDir, srcDir, "", unix.MS_BIND, ""))
	defer unix.Unmount(srcDir, unix.MNT_DETACH)

	s := newTestSandbox()
	s.AddContainer(&Container{ID: "src", InitProcessPid: os.Getpid()})
	s.AddContainer(&Container{ID: "dst", InitProcessPid: os.Getpid()})

	err := s.SetupSharedMounts("dst", []SharedMount{
		{SourceContainerID: "src", Source: srcDir, Destination: dstDir},
	})
	require.NoError(t, err)
	defer unix.Unmount(dstDir, unix.MNT_DETACH)

	contents, err := os.ReadFile(filepath.Join(dstDir, "marker"))
	require.NoError(t, err)
	assert.Equal(t, "shared", string(contents))
	assert.Equal(t, float64(0), testutilCounterValue(t, s.Metrics.SharedMountFailures))
}
