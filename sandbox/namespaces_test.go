// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUpdateSharedPidnsNoopWhenContainersExist confirms the precondition
// failure (sandbox already has containers recorded) is a silent no-op,
// not an error, matching spec.md §4.1's "only has effect when..." and
// the Rust source's fall-through to Ok(()).
func TestUpdateSharedPidnsNoopWhenContainersExist(t *testing.T) {
	s := newTestSandbox()
	s.AddContainer(&Container{ID: "c1"})

	err := s.UpdateSharedPidns(&Container{ID: "c2", InitProcessPid: 1234})
	assert.NoError(t, err)
	_, ok := s.SandboxPidns()
	assert.False(t, ok)
}

// TestUpdateSharedPidnsNoopWhenAlreadySet confirms the same no-op
// behavior when the sandbox pidns has already been pinned once.
func TestUpdateSharedPidnsNoopWhenAlreadySet(t *testing.T) {
	s := newTestSandbox()
	require.NoError(t, s.UpdateSharedPidns(&Container{ID: "c1", InitProcessPid: selfPid()}))

	err := s.UpdateSharedPidns(&Container{ID: "c2", InitProcessPid: 5678})
	assert.NoError(t, err)
}

func TestUpdateSharedPidnsRejectsInvalidPid(t *testing.T) {
	s := newTestSandbox()
	err := s.UpdateSharedPidns(&Container{ID: "c1", InitProcessPid: 0})
	assert.ErrorIs(t, err, errInitPidInvalid)
}

func TestSetupSharedNamespacesPinsSelf(t *testing.T) {
	s := newTestSandbox()
	err := s.SetupSharedNamespaces()
	require.NoError(t, err)
	assert.NotNil(t, s.sharedUTSNS)
	assert.NotNil(t, s.sharedIPCNS)

	// calling twice must not re-pin or error.
	err = s.SetupSharedNamespaces()
	require.NoError(t, err)
}
