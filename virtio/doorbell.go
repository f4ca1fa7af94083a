// Copyright (C) 2019 Alibaba Cloud Computing. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0 AND BSD-3-Clause

package virtio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Doorbell is the per-queue ioeventfd the per-queue doorbell region
// (spec.md §4.2: "writes dispatch to the device's per-queue notifier...
// when the hypervisor supports length-less ioeventfds") forwards guest
// stores to, letting the host avoid a VM exit per notification.
type Doorbell struct {
	QueueIndex uint32
	EventFD    int
}

// NewDoorbell creates the eventfd backing a single queue's doorbell slot.
// Its file descriptor is registered with the hypervisor out of this
// package's scope (that registration is VMM-specific ioctl plumbing); this
// only manages the guest-visible eventfd lifecycle.
func NewDoorbell(queueIndex uint32) (*Doorbell, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create doorbell eventfd for queue %d: %w", queueIndex, err)
	}
	return &Doorbell{QueueIndex: queueIndex, EventFD: fd}, nil
}

// Ring signals the doorbell, the guest-side equivalent of a QueueNotify
// MMIO write once PER_QUEUE_NOTIFY has been negotiated.
func (db *Doorbell) Ring() error {
	b := make([]byte, 8)
	b[0] = 1
	if _, err := unix.Write(db.EventFD, b); err != nil {
		return fmt.Errorf("failed to ring doorbell for queue %d: %w", db.QueueIndex, err)
	}
	return nil
}

// Close releases the doorbell's eventfd.
func (db *Doorbell) Close() error {
	return unix.Close(db.EventFD)
}
