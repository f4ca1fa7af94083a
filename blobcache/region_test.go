// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeForUserMergesAdjacent(t *testing.T) {
	chunks := threeChunks()
	runs := mergeForUser(chunks, 3*4096)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0], 3)
}

func TestMergeForUserSplitsOnMergingSizeLimit(t *testing.T) {
	chunks := threeChunks()
	runs := mergeForUser(chunks, 4096)
	require.Len(t, runs, 3)
}

func TestBuildRegionsSplitsByTypeAndJoinsByOffset(t *testing.T) {
	m := NewChunkMap(3)
	chunks := threeChunks()
	m.SetReady(0)
	m.SetReady(2)
	// chunk 1 stays not-ready -> Backend, chunks 0 and 2 -> CacheFast but
	// not contiguous with each other (separated by chunk 1), so three
	// distinct regions result.
	regions := BuildRegions(m, chunks, func(ChunkInfo) bool { return false })
	require.Len(t, regions, 3)
	assert.Equal(t, RegionCacheFast, regions[0].Type)
	assert.Equal(t, RegionBackend, regions[1].Type)
	assert.Equal(t, RegionCacheFast, regions[2].Type)
}

func TestBuildRegionsJoinsContiguousSameType(t *testing.T) {
	m := NewChunkMap(3)
	chunks := threeChunks()
	for _, c := range chunks {
		m.SetReady(c.Index)
	}
	regions := BuildRegions(m, chunks, func(ChunkInfo) bool { return false })
	require.Len(t, regions, 1)
	assert.Equal(t, RegionCacheFast, regions[0].Type)
	assert.Len(t, regions[0].Chunks, 3)
}
