// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox() *Sandbox {
	return NewSandbox("sbx-1", "test-host", DefaultConfig())
}

func TestAddAndGetContainer(t *testing.T) {
	s := newTestSandbox()
	c := &Container{ID: "c1", Name: "alpha", Processes: map[int]*Process{1: {Pid: 1}}}
	s.AddContainer(c)

	got, err := s.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = s.GetContainer("missing")
	assert.ErrorIs(t, err, errInvalidContainerID)
}

func TestFindContainerByName(t *testing.T) {
	s := newTestSandbox()
	c := &Container{ID: "c1", Name: "alpha"}
	s.AddContainer(c)

	got, err := s.FindContainerByName("alpha")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = s.FindContainerByName("missing")
	assert.ErrorIs(t, err, errInvalidContainerID)
}

func TestFindContainerProcess(t *testing.T) {
	s := newTestSandbox()
	c := &Container{
		ID: "c1",
		Processes: map[int]*Process{
			100: {Pid: 100, ExecID: ""},
			101: {Pid: 101, ExecID: "exec-1"},
		},
	}
	s.AddContainer(c)

	initProc, err := s.FindContainerProcess("c1", "")
	require.NoError(t, err)
	assert.Equal(t, 100, initProc.Pid)

	execProc, err := s.FindContainerProcess("c1", "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 101, execProc.Pid)

	_, err = s.FindContainerProcess("missing", "")
	assert.ErrorIs(t, err, errInvalidContainerID)
}

func TestFindContainerProcessNoInit(t *testing.T) {
	s := newTestSandbox()
	c := &Container{ID: "c1", Processes: map[int]*Process{}}
	s.AddContainer(c)

	_, err := s.FindContainerProcess("c1", "")
	assert.ErrorIs(t, err, errNoInitProcess)
}

type fakeStorage struct {
	cleaned int
}

func (f *fakeStorage) Cleanup() error {
	f.cleaned++
	return nil
}

// TestStorageRefcountSingleCleanup grounds spec.md scenario S1: N
// concurrent holders of the same storage path must trigger exactly one
// Cleanup call, on the final RemoveSandboxStorage.
func TestStorageRefcountSingleCleanup(t *testing.T) {
	s := newTestSandbox()
	dev := &fakeStorage{}

	const holders = 8
	for i := 0; i < holders; i++ {
		s.AddSandboxStorage("/run/kata/storage1", dev)
	}

	var wg sync.WaitGroup
	terminalCount := make(chan bool, holders)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			terminal, err := s.RemoveSandboxStorage("/run/kata/storage1")
			assert.NoError(t, err)
			terminalCount <- terminal
		}()
	}
	wg.Wait()
	close(terminalCount)

	terminals := 0
	for t := range terminalCount {
		if t {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, 1, dev.cleaned)

	_, err := s.RemoveSandboxStorage("/run/kata/storage1")
	assert.ErrorIs(t, err, errStorageNotFound)
}

func TestUpdateSandboxStorageUnknown(t *testing.T) {
	s := newTestSandbox()
	_, err := s.UpdateSandboxStorage("/no/such/path", &fakeStorage{})
	assert.ErrorIs(t, err, errStorageNotFound)
}

func TestPCIAddressMapping(t *testing.T) {
	s := newTestSandbox()
	s.MapPCIAddress("0000:00:02.0", "0000:01:03.0")

	host, ok := s.HostPCIAddress("0000:00:02.0")
	require.True(t, ok)
	assert.Equal(t, "0000:01:03.0", host)

	_, ok = s.HostPCIAddress("missing")
	assert.False(t, ok)
}

func TestDestroyAggregatesErrors(t *testing.T) {
	s := newTestSandbox()
	s.AddContainer(&Container{ID: "ok", DestroyFunc: func() error { return nil }})
	s.AddContainer(&Container{ID: "bad", DestroyFunc: func() error { return assertErr }})

	err := s.Destroy()
	require.Error(t, err)
}

var assertErr = assertError{}

type assertError struct{}

func (assertError) Error() string { return "destroy failed" }
