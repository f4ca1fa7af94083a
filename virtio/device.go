// Copyright (C) 2019 Alibaba Cloud Computing. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0 AND BSD-3-Clause

package virtio

// Device is the capability the MMIO transport drives, kept intentionally
// narrow the way original_source's VirtioDevice trait is: config space
// access, feature negotiation, (de)activation, queue sizing and reset.
// Concrete devices (block, net, vsock) implement this; the transport never
// downcasts to a concrete type, matching spec.md's "avoid dynamic dispatch
// in the hot path, but keep the inner device behind an abstract
// capability" design note.
type Device interface {
	// DeviceType is the virtio device-id reported at RegDeviceID.
	DeviceType() uint32

	// ReadConfig copies len(data) bytes from the device-specific
	// configuration space starting at offset into data.
	ReadConfig(offset uint64, data []byte) error
	// WriteConfig writes data into the device-specific configuration
	// space starting at offset.
	WriteConfig(offset uint64, data []byte) error

	// AvailableFeatures returns the feature bits available in the given
	// 32-bit feature page (0 or 1).
	AvailableFeatures(page uint32) uint32
	// AckFeatures records features the driver has accepted for a page.
	AckFeatures(page, value uint32)

	// QueueMaxSizes lists the maximum queue size per virtqueue index.
	QueueMaxSizes() []uint16

	// Activate is invoked once DRIVER_OK is reached; returning an error
	// forces the device back to FAILED.
	Activate() error
	// Reset returns the device to its pre-activation state.
	Reset() error
}

// QueueState is the per-queue configuration area the transport maintains
// on the guest's behalf: selected size/readiness/descriptor addresses.
// Actual virtqueue interpretation (descriptor walking) is out of this
// package's scope; it only tracks what the guest driver programmed.
type QueueState struct {
	Size       uint16
	MaxSize    uint16
	Ready      bool
	DescLow    uint32
	DescHigh   uint32
	AvailLow   uint32
	AvailHigh  uint32
	UsedLow    uint32
	UsedHigh   uint32
}
