// Copyright (c) 2016 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package sandbox implements the guest-side sandbox controller: the
// process-wide singleton that owns containers, shared namespace pins,
// storage reference counting, CPU/memory hot-online and OOM event fan-out
// inside a Kata guest. It is grounded on
// original_source/src/agent/src/sandbox.rs, generalizing the Rust
// Mutex<Sandbox>/Arc<AtomicU32> shapes into Go's sync.Mutex and
// sync/atomic idioms, following the struct-plus-mutex and logrus field
// logging patterns used throughout
// kata-containers/src/runtime/virtcontainers.
package sandbox

import (
	"os"
	"sync"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	ktypes "github.com/kata-containers/kata-containers-sub013/pkg/types"
)

var sandboxLog = logrus.WithFields(logrus.Fields{
	"source":    "sandbox",
	"subsystem": ktypes.SubsystemSandbox,
})

// SetLogger lets the owning process install a configured logger, matching
// pkg/katautils.SetLogger's pattern.
func SetLogger(logger *logrus.Entry) {
	sandboxLog = logger.WithFields(logrus.Fields{"subsystem": ktypes.SubsystemSandbox})
}

// Sandbox is the process-wide singleton per guest agent described in
// spec.md §3. All mutating APIs require exclusive access to mu; storage
// counters use their own atomics (see storage.go) and are safe to touch
// without mu held once a *StorageState has been obtained.
type Sandbox struct {
	mu sync.Mutex

	ID           string
	Hostname     string
	NoPivotRoot  bool

	containers map[string]*Container
	storages   map[string]*StorageState

	sharedUTSNS *os.File
	sharedIPCNS *os.File
	sandboxPidNS *os.File

	hooks *Hooks

	eventTx chan string

	pciMap map[string]string // guest PCI address -> host PCI address

	DeviceCgroup *DeviceCgroupInfo

	Config  Config
	Metrics *Metrics
}

// NewSandbox constructs an empty Sandbox with the given id/hostname. cfg is
// typically sandbox.DefaultConfig() or a TOML-loaded override.
func NewSandbox(id, hostname string, cfg Config) *Sandbox {
	return &Sandbox{
		ID:           id,
		Hostname:     hostname,
		containers:   make(map[string]*Container),
		storages:     make(map[string]*StorageState),
		eventTx:      make(chan string, cfg.OOMEventChannelCapacity),
		pciMap:       make(map[string]string),
		DeviceCgroup: NewDeviceCgroupInfo(),
		Config:       cfg,
		Metrics:      NewMetrics(nil),
	}
}

// AddContainer implements spec.md §4.1's add_container: inserts into
// containers keyed by c.ID; does not validate cgroups.
func (s *Sandbox) AddContainer(c *Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[c.ID] = c
}

// GetContainer implements spec.md §4.1's get_container: a read-only lookup
// failing with the fixed errInvalidContainerID message for an unknown id.
func (s *Sandbox) GetContainer(id string) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[id]
	if !ok {
		return nil, errInvalidContainerID
	}
	return c, nil
}

// FindContainerByName implements spec.md §4.1's find_container_by_name.
func (s *Sandbox) FindContainerByName(name string) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.containers {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, errInvalidContainerID
}

// FindProcess implements spec.md §4.1's find_process(pid): a read-only
// lookup across every container's process table.
func (s *Sandbox) FindProcess(pid int) (*Process, *Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.containers {
		if p, ok := c.Processes[pid]; ok {
			return p, c, nil
		}
	}
	return nil, nil, errors.New("process not found")
}

// FindContainerProcess implements spec.md §4.1's
// find_container_process(cid, eid): an empty execID resolves to the init
// process, failing with "cannot find init process" if absent; an unknown
// container id fails with errInvalidContainerID.
func (s *Sandbox) FindContainerProcess(containerID, execID string) (*Process, error) {
	c, err := s.GetContainer(containerID)
	if err != nil {
		return nil, err
	}
	return c.FindProcess(execID)
}

// Destroy implements spec.md §4.1's destroy(): iterates every container
// calling Destroy(); errors are aggregated and returned together so one
// failing container doesn't hide failures in the rest.
func (s *Sandbox) Destroy() error {
	s.mu.Lock()
	containers := make([]*Container, 0, len(s.containers))
	for _, c := range s.containers {
		containers = append(containers, c)
	}
	s.mu.Unlock()

	var result error
	for _, c := range containers {
		if err := c.Destroy(); err != nil {
			result = appendErr(result, errors.Wrapf(err, "destroying container %s", c.ID))
		}
	}
	return result
}

// SetHooks installs the hook set discovered via AddHooks.
func (s *Sandbox) SetHooks(h *Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// PreStartHooks, PostStartHooks and PostStopHooks return the sandbox's
// installed hook phase, or nil if none was set.
func (s *Sandbox) PreStartHooks() []specs.Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks == nil {
		return nil
	}
	return s.hooks.PreStart
}

func (s *Sandbox) PostStartHooks() []specs.Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks == nil {
		return nil
	}
	return s.hooks.PostStart
}

func (s *Sandbox) PostStopHooks() []specs.Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks == nil {
		return nil
	}
	return s.hooks.PostStop
}

// MapPCIAddress records a guest->host PCI address mapping (spec.md §3's
// pcimap).
func (s *Sandbox) MapPCIAddress(guestAddr, hostAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pciMap[guestAddr] = hostAddr
}

// HostPCIAddress resolves a previously recorded mapping.
func (s *Sandbox) HostPCIAddress(guestAddr string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.pciMap[guestAddr]
	return addr, ok
}
