// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package nsutils provides the small set of raw namespace operations the
// sandbox controller needs for shared UTS/IPC/PID namespace pins and for
// the cross-namespace shared-mount algorithm (spec.md §4.1.1). It is
// grounded directly on the nix-crate calls used by
// original_source/src/agent/src/sandbox.rs: open(2) with O_PATH|O_CLOEXEC
// on /proc/<pid>/ns/*, unshare(2)/setns(2) for namespace switches, and the
// open_tree(2)/move_mount(2) syscall pair used there via raw
// libc::syscall(SYS_open_tree/SYS_move_mount) since Go's x/sys/unix has no
// typed wrapper for either.
package nsutils

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Pin opens /proc/<pid>/ns/<kind> (kind is "uts", "ipc", "pid", "mnt", ...)
// with O_PATH|O_CLOEXEC, keeping the namespace alive for as long as the
// returned file is held open, exactly like the Rust source's use of
// fcntl::open with OFlag::O_PATH.
func Pin(pid int, kind string) (*os.File, error) {
	path := fmt.Sprintf("/proc/%d/ns/%s", pid, kind)

	fd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to pin %s namespace of pid %d: %w", kind, pid, err)
	}

	return os.NewFile(uintptr(fd), path), nil
}

// Enter calls setns(2) against an already-pinned namespace file descriptor.
// Per setns(2)'s own caveat (referenced verbatim in the Rust source), a
// process cannot setns into a *mount* namespace directly if its own
// filesystem attributes (CLONE_FS) are shared with other threads; callers
// switching mount namespaces must first call UnshareMountNS on the calling
// OS thread.
func Enter(ns *os.File, flag int) error {
	if err := unix.Setns(int(ns.Fd()), flag); err != nil {
		return fmt.Errorf("setns failed: %w", err)
	}
	return nil
}

// UnshareMountNS detaches the calling OS thread from shared filesystem
// attributes by unsharing a private mount namespace of its own, which is
// the precondition the Rust source documents before any further mount
// namespace setns calls succeed. Callers must have already pinned the
// calling goroutine to its OS thread with runtime.LockOSThread.
func UnshareMountNS() error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("unshare(CLONE_NEWNS) failed: %w", err)
	}
	return nil
}

// OpenTreeClone clones the mount subtree at path into an anonymous mount,
// detached from the filesystem hierarchy, using open_tree(2) with
// OPEN_TREE_CLONE|AT_RECURSIVE|O_CLOEXEC — the same flag combination the
// Rust source passes to the raw SYS_open_tree syscall.
func OpenTreeClone(path string) (int, error) {
	const (
		openTreeCloexec  = 0x80000 // OPEN_TREE_CLOEXEC == O_CLOEXEC
		openTreeClone    = 1
		atRecursive      = 0x8000
		sysOpenTreeErrno = -1
	)

	pathBytes, err := unix.BytePtrFromString(path)
	if err != nil {
		return -1, err
	}

	fd, _, errno := unix.Syscall6(
		unix.SYS_OPEN_TREE,
		uintptr(unix.AT_FDCWD),
		uintptr(unsafe.Pointer(pathBytes)),
		uintptr(openTreeClone|atRecursive|openTreeCloexec),
		0, 0, 0,
	)
	if errno != 0 {
		return sysOpenTreeErrno, fmt.Errorf("open_tree(%s) failed: %w", path, errno)
	}

	return int(fd), nil
}

// MoveMountTo attaches a detached mount tree (as returned by
// OpenTreeClone) at dstPath, using move_mount(2) with MOVE_MOUNT_F_EMPTY_PATH
// so the source is identified purely by the file descriptor, matching the
// Rust source's raw SYS_move_mount call.
func MoveMountTo(treeFd int, dstPath string) error {
	const moveMountFEmptyPath = 0x00000004

	emptySrc, err := unix.BytePtrFromString("")
	if err != nil {
		return err
	}
	dst, err := unix.BytePtrFromString(dstPath)
	if err != nil {
		return err
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_MOVE_MOUNT,
		uintptr(treeFd),
		uintptr(unsafe.Pointer(emptySrc)),
		uintptr(unix.AT_FDCWD),
		uintptr(unsafe.Pointer(dst)),
		uintptr(moveMountFEmptyPath),
		0,
	)
	if errno != 0 {
		return fmt.Errorf("move_mount to %s failed: %w", dstPath, errno)
	}

	return nil
}

// RunOnLockedThread runs fn on a new goroutine locked to its own OS thread
// and waits for its result. The shared-mount algorithm
// (spec.md §4.1.1) requires this: namespace switches are per-OS-thread
// state, so the whole sequence of setns calls for one mount must execute
// on a single, otherwise-unshared thread, exactly as the Rust source
// spawns a fresh std::thread for the purpose. The goroutine never unlocks
// the thread, so the runtime terminates that thread once fn returns and
// its namespace changes never reach other goroutines.
func RunOnLockedThread(fn func() error) error {
	done := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		done <- fn()
	}()

	return <-done
}
