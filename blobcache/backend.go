// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import "context"

// Backend fetches raw chunk bytes from wherever the blob actually lives
// (a registry, an fscache daemon, local disk) — injected so this package
// never names a concrete transport, matching read_chunks' role in
// cachedfile.rs.
type Backend interface {
	// ReadChunks fetches the byte range [compressedOffset,
	// compressedOffset+compressedSize) covering chunks, returning it as
	// one contiguous buffer. prefetch indicates a best-effort background
	// fetch versus a user-blocking read.
	ReadChunks(ctx context.Context, compressedOffset uint64, compressedSize uint32, chunks []ChunkInfo, prefetch bool) ([]byte, error)
}

// Validator re-validates and, if needed, decompresses a chunk's raw
// bytes into its uncompressed form — injected for the same reason as
// Backend: digest/compress algorithms are out of scope here.
type Validator interface {
	Validate(chunk ChunkInfo, raw []byte) ([]byte, error)
}
