// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package nsutils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinSelf(t *testing.T) {
	assert := assert.New(t)

	f, err := Pin(os.Getpid(), "mnt")
	assert.NoError(err)
	if f != nil {
		defer f.Close()
		assert.Contains(f.Name(), "/ns/mnt")
	}
}

func TestPinNonexistentPid(t *testing.T) {
	assert := assert.New(t)

	_, err := Pin(1<<30, "uts")
	assert.Error(err)
}

func TestRunOnLockedThreadPropagatesResult(t *testing.T) {
	assert := assert.New(t)

	err := RunOnLockedThread(func() error { return nil })
	assert.NoError(err)

	sentinel := assert.AnError
	err = RunOnLockedThread(func() error { return sentinel })
	assert.Equal(sentinel, err)
}
