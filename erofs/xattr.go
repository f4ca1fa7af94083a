// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package erofs

import (
	"encoding/binary"
	"fmt"
)

// xattrIbodyHeaderSize is the fixed 12-byte header preceding an inode's
// inline xattr entries: 4 bytes reserved, a shared-xattr count byte, 7
// bytes reserved, matching upstream EROFS's erofs_xattr_ibody_header.
const xattrIbodyHeaderSize = 12

// Xattr is one decoded inline extended attribute.
type Xattr struct {
	NameIndex uint8
	Name      string
	Value     []byte
}

// xattrAreaSize reports the total byte size of the inode's xattr area:
// spec.md §4.3's `i_xattr_count` field is in 4-byte units, and a count of
// zero means no xattr area at all.
func (in *Inode) xattrAreaSize() uint64 {
	r, _, err := decodeRawInode(in.mapping, in.offset)
	if err != nil || r.xattrCount == 0 {
		return 0
	}
	return uint64(r.xattrCount) * 4
}

// xattrAreaOffset is where the xattr area begins: immediately after the
// inode's fixed compact/extended header.
func (in *Inode) xattrAreaOffset() uint64 {
	headerSize := uint64(compactInodeSize)
	if in.isExtended() {
		headerSize = extendedInodeSize
	}
	return in.offset + headerSize
}

// GetXattrs decodes every inline xattr entry attached to this inode,
// grounded on direct_v6.rs's get_xattrs walk: a fixed ibody header
// (naming the count of shared xattr ids that follow, which this reader
// does not resolve since it has no shared-xattr pool reference), then a
// sequence of name/value entries each padded to 4-byte alignment.
func (in *Inode) GetXattrs() ([]Xattr, error) {
	size := in.xattrAreaSize()
	if size == 0 {
		return nil, nil
	}
	if size < xattrIbodyHeaderSize {
		return nil, fmt.Errorf("xattr area too small: %d bytes", size)
	}

	area, err := in.mapping.byteRange(in.xattrAreaOffset(), size)
	if err != nil {
		return nil, fmt.Errorf("invalid xattr area: %w", err)
	}

	sharedCount := int(area[4])
	pos := xattrIbodyHeaderSize + sharedCount*4
	if pos > len(area) {
		return nil, fmt.Errorf("xattr shared-id list overruns xattr area")
	}

	var xattrs []Xattr
	for pos < len(area) {
		if pos+4 > len(area) {
			break
		}
		nameLen := int(area[pos])
		nameIndex := area[pos+1]
		valueSize := int(binary.LittleEndian.Uint16(area[pos+2 : pos+4]))
		pos += 4

		if pos+nameLen+valueSize > len(area) {
			return nil, fmt.Errorf("xattr entry overruns xattr area")
		}
		name := string(area[pos : pos+nameLen])
		pos += nameLen
		value := append([]byte(nil), area[pos:pos+valueSize]...)
		pos += valueSize

		xattrs = append(xattrs, Xattr{NameIndex: nameIndex, Name: name, Value: value})

		// Entries are 4-byte aligned.
		pos = (pos + 3) &^ 3
	}
	return xattrs, nil
}

// GetXattr returns the single named inline xattr, or ok=false if absent.
func (in *Inode) GetXattr(nameIndex uint8, name string) (value []byte, ok bool, err error) {
	xattrs, err := in.GetXattrs()
	if err != nil {
		return nil, false, err
	}
	for _, x := range xattrs {
		if x.NameIndex == nameIndex && x.Name == name {
			return x.Value, true, nil
		}
	}
	return nil, false, nil
}
