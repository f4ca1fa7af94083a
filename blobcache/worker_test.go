// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefetcherStartStopActive(t *testing.T) {
	p := NewPrefetcher(newFakeBackend(), 1, 4)
	defer p.Close()

	assert.False(t, p.IsPrefetchActive())
	p.StartPrefetch()
	assert.True(t, p.IsPrefetchActive())
	p.StopPrefetch()
	assert.False(t, p.IsPrefetchActive())
}

func TestPrefetcherSubmitFetchesNotReadyChunks(t *testing.T) {
	entry := newTestEntry(t)
	backend := newFakeBackend()
	p := NewPrefetcher(backend, 2, 4)
	defer p.Close()

	chunks := threeChunks()
	p.Submit(entry, chunks)

	require.Eventually(t, func() bool {
		return entry.chunks.IsReady(0) && entry.chunks.IsReady(1) && entry.chunks.IsReady(2)
	}, time.Second, 5*time.Millisecond)
}
