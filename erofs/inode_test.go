// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCompactInode(t *testing.T) {
	data := buildCompactInode(LayoutFlatInline, 0o100644, 3, 0x1234, 7)
	m := &mapping{data: data, meta: Meta{ChunkSize: EROFSBlockSize}, fd: -1}

	r, extended, err := decodeRawInode(m, 0)
	require.NoError(t, err)
	assert.False(t, extended)
	assert.Equal(t, uint16(0o100644), r.mode)
	assert.Equal(t, uint32(3), r.nlink)
	assert.Equal(t, uint64(0x1234), r.size(extended))
	assert.Equal(t, uint32(7), r.rawBlkAddr)
	assert.Equal(t, uint16(LayoutFlatInline), r.layout())
}

func TestInodeIsDirAndSize(t *testing.T) {
	in, _ := newDirInode(t, 1, rootDirEntries())

	isDir, err := in.IsDir()
	require.NoError(t, err)
	assert.True(t, isDir)

	size, err := in.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(EROFSBlockSize), size)
}

func TestInodeValidateRejectsOutOfRangeNID(t *testing.T) {
	in, _ := newDirInode(t, 1, rootDirEntries())
	in.nid = MaxInodeNumber + 1
	assert.Error(t, in.Validate())
}

func TestInodeValidateAcceptsInRangeNID(t *testing.T) {
	in, _ := newDirInode(t, 1, rootDirEntries())
	assert.NoError(t, in.Validate())
}

func TestWithParentOverridesClone(t *testing.T) {
	in, _ := newDirInode(t, 1, rootDirEntries())
	child := in.WithParent(99, "name")

	parent, ok := child.ParentInode()
	assert.True(t, ok)
	assert.Equal(t, uint64(99), parent)
	assert.Equal(t, "name", child.Name())

	_, ok = in.ParentInode()
	assert.False(t, ok)
}
