// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChunkAddr(t *testing.T) {
	buf := make([]byte, chunkAddrSize)
	packed := uint32(0x12_3456) | uint32(7)<<24
	binary.LittleEndian.PutUint32(buf[0:4], packed)
	binary.LittleEndian.PutUint32(buf[4:8], 0xdead_beef)

	addr, err := decodeChunkAddr(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), addr.BlobIndex)
	assert.Equal(t, uint32(0x12_3456), addr.BlobCompIndex)
	assert.Equal(t, uint32(0xdead_beef), addr.BlockAddr)
	assert.True(t, addr.Valid())
}

func TestChunkAddrZeroIsInvalid(t *testing.T) {
	addr := RafsV6InodeChunkAddr{}
	assert.False(t, addr.Valid())
}

func TestChunkAddrBufferTooSmall(t *testing.T) {
	_, err := decodeChunkAddr(make([]byte, 4))
	assert.Error(t, err)
}

func TestChunkAddrRejectsNonChunkLayout(t *testing.T) {
	in, _ := newDirInode(t, 1, rootDirEntries())
	_, err := in.ChunkAddr(0)
	assert.Error(t, err)
}
