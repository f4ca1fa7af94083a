// Copyright (c) 2020 Ant Group
//
// SPDX-License-Identifier: Apache-2.0
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSandboxStateString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("init", StateInit.String())
	assert.Equal("ready", StateReady.String())
	assert.Equal("running", StateRunning.String())
	assert.Equal("stopped", StateStopped.String())
	assert.Equal("unknown", SandboxState(255).String())
}
