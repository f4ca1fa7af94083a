// Copyright (c) 2016 Intel Corporation
// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package sandbox

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// errInvalidContainerID is returned verbatim by lookups against an unknown
// container ID, matching the fixed string used by
// original_source/src/agent/src/sandbox.rs's ERR_INVALID_CONTAINER_ID.
var errInvalidContainerID = errors.New("Invalid container id")

var (
	errStorageNotFound     = errors.New("storage not found")
	errNoInitProcess       = errors.New("cannot find init process")
	errInitPidInvalid      = errors.New("container init process pid is invalid")
	errOnlineBudgetReached = errors.New("exhausted retry budget onlining resources")
)

// appendErr accumulates errors the way spec.md's per-container/per-mount
// loops require: nil in, nil out; otherwise a *multierror.Error usable as a
// normal error.
func appendErr(dst error, err error) error {
	return multierror.Append(dst, err).ErrorOrNil()
}
