// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndMarkPendingOnce(t *testing.T) {
	m := NewChunkMap(4)
	assert.True(t, m.CheckAndMarkPending(0))
	assert.False(t, m.CheckAndMarkPending(0))
}

func TestSetReadyThenIsReady(t *testing.T) {
	m := NewChunkMap(1)
	assert.False(t, m.IsReady(0))
	m.SetReady(0)
	assert.True(t, m.IsReady(0))
}

func TestClearPendingAllowsRetry(t *testing.T) {
	m := NewChunkMap(1)
	require.True(t, m.CheckAndMarkPending(0))
	m.ClearPending(0)
	assert.True(t, m.CheckAndMarkPending(0))
}

func TestCheckRangeReadyAndMarkPendingSkipsReady(t *testing.T) {
	m := NewChunkMap(4)
	m.SetReady(1)
	pended := m.CheckRangeReadyAndMarkPending(0, 4)
	assert.ElementsMatch(t, []int{0, 2, 3}, pended)
	assert.True(t, m.IsReady(1))
}

func TestCheckAndMarkPendingConcurrentOnlyOneWinner(t *testing.T) {
	m := NewChunkMap(1)
	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- m.CheckAndMarkPending(0)
		}()
	}
	wg.Wait()
	close(wins)
	trueCount := 0
	for w := range wins {
		if w {
			trueCount++
		}
	}
	assert.Equal(t, 1, trueCount)
}

func TestWaitForRangeReadyTimesOut(t *testing.T) {
	m := NewChunkMap(2)
	m.SetReady(0)
	assert.False(t, m.WaitForRangeReady(0, 2, 20*time.Millisecond))
}

func TestWaitForRangeReadySucceeds(t *testing.T) {
	m := NewChunkMap(2)
	m.SetReady(0)
	m.SetReady(1)
	assert.True(t, m.WaitForRangeReady(0, 2, 20*time.Millisecond))
}
