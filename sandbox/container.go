// Copyright (c) 2016 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Process is the minimal external view of a guest process spec.md
// requires: enough for init-pid lookups and exec-id bookkeeping. The full
// process supervision (stdio plumbing, wait status) lives outside this
// spec's three cores and is represented here only as far as the sandbox
// controller's own contracts need it.
type Process struct {
	Pid int
	// ExecID is empty for the container's init process.
	ExecID string
}

// CgroupManager is the narrow capability the sandbox controller needs from
// a container's resource controller: updating the cpuset after CPUs are
// hot-onlined (spec.md §4.1 online_cpu_memory).
type CgroupManager interface {
	UpdateCpuset(cpus string) error
}

// Container is the external collaborator spec.md §3 describes: "minimally
// exposes id, init_process_pid, processes, cgroup_manager, config.spec".
// Everything about building, starting or supervising a container lives
// outside the in-scope cores; this struct is just the shape the sandbox
// controller reads and writes.
type Container struct {
	ID              string
	InitProcessPid  int
	Processes       map[int]*Process
	CgroupManager   CgroupManager
	Spec            *specs.Spec
	// Name is distinct from ID; FindContainerByName searches this field
	// the way the Rust source compares against an OCI annotation.
	Name string

	// DestroyFunc is invoked by Destroy. Real container teardown (killing
	// processes, releasing the cgroup, unmounting rootfs) belongs to the
	// external collaborator that constructs containers; this hook lets
	// that collaborator plug in without the sandbox controller needing
	// to know its shape.
	DestroyFunc func() error
}

// Destroy runs DestroyFunc if set. A container with no teardown hook is
// considered already torn down.
func (c *Container) Destroy() error {
	if c.DestroyFunc == nil {
		return nil
	}
	return c.DestroyFunc()
}

// Destroyer tears down a container. Concrete cleanup (killing processes,
// releasing the cgroup, unmounting rootfs) is owned by the collaborator
// that constructs containers; the sandbox controller only requires that
// Destroy exists and reports success/failure so Sandbox.Destroy can
// aggregate errors across every container (spec.md §4.1 destroy()).
type Destroyer interface {
	Destroy() error
}

// FindProcess returns the Process for the given exec ID, or the init
// process when execID is empty, matching
// Sandbox.find_container_process's semantics.
func (c *Container) FindProcess(execID string) (*Process, error) {
	if execID == "" {
		for _, p := range c.Processes {
			if p.ExecID == "" {
				return p, nil
			}
		}
		return nil, errNoInitProcess
	}

	for _, p := range c.Processes {
		if p.ExecID == execID {
			return p, nil
		}
	}

	return nil, errNoInitProcess
}
