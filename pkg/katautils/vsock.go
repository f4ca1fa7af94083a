// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2018 HyperHQ Inc.
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"fmt"

	"github.com/mdlayher/vsock"
)

// VsockListener wraps a vsock.Listener, standing in for the out-of-scope
// HTTP micro-server collaborator (dbs-uhttp): cmd/agentctl needs a
// concrete transport to bind the sandbox RPC surface to, matching how
// the real guest agent listens on a vsock CID/port pair, but the RPC
// surface itself is explicitly out of scope.
type VsockListener struct {
	*vsock.Listener
	Port uint32
}

// ListenVsock opens a vsock listener on the given port, CID_ANY.
func ListenVsock(port uint32) (*VsockListener, error) {
	l, err := vsock.Listen(port, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on vsock port %d: %w", port, err)
	}
	return &VsockListener{Listener: l, Port: port}, nil
}
