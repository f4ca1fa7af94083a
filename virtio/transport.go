// Copyright (C) 2019 Alibaba Cloud Computing. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0 AND BSD-3-Clause

package virtio

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	ktypes "github.com/kata-containers/kata-containers-sub013/pkg/types"
)

var transportLog = logrus.WithFields(logrus.Fields{
	"source":    "virtio",
	"subsystem": ktypes.SubsystemVirtio,
})

// Features the transport may negotiate at construction time, each
// contributing a bit to the vendor-id high nibble once accepted.
type Features struct {
	PerQueueNotify bool
	MSIIntr        bool
	IntrUsed       bool
}

// HostCapabilities reports what the host hypervisor actually supports,
// queried once at construction; IoeventfdNoLength mirrors
// vm_fd.check_extension(kvm_ioctls::Cap::IoeventfdNoLength) in the
// source.
type HostCapabilities struct {
	IoeventfdNoLength bool
}

// MmioV2Device implements the MMIO v2 transport over an inner Device. It
// is safe for concurrent use: driverStatus is updated atomically for
// lock-free reads, while state (queues, MSI, shm) is guarded by mu so a
// single mutex serializes every guest-visible mutation, mirroring
// Mutex<MmioV2DeviceState> in the source.
type MmioV2Device struct {
	mu sync.Mutex

	inner Device

	driverStatus     atomic.Uint32
	configGeneration atomic.Uint32

	deviceVendor uint32
	doorbellOn   bool

	queues       []QueueState
	queueSel     uint32
	featuresSel  uint32
	ackFeatSel   uint32

	msi msiState

	interruptStatus atomic.Uint32

	metrics *Metrics
}

// SetMetrics installs a Metrics collector; nil disables counting.
func (d *MmioV2Device) SetMetrics(m *Metrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
}

// RaiseInterrupt sets bits in the interrupt status register and counts
// the injection, the guest-visible side of an irqfd write in the source.
func (d *MmioV2Device) RaiseInterrupt(bits uint32) {
	setBits(&d.interruptStatus, bits)
	d.mu.Lock()
	m := d.metrics
	d.mu.Unlock()
	if m != nil {
		m.InterruptsInjected.Inc()
	}
}

// NewMmioV2Device constructs a transport wrapping device, negotiating feat
// against what the host actually supports.
func NewMmioV2Device(device Device, feat Features, host HostCapabilities) *MmioV2Device {
	vendor := uint32(VendorIDBase)
	doorbellOn := false

	if feat.MSIIntr {
		vendor |= FeatureMSIIntr
	}
	if feat.IntrUsed {
		vendor |= FeatureIntrUsed
	}
	if feat.PerQueueNotify {
		if host.IoeventfdNoLength {
			vendor |= FeaturePerQueueNotify
			doorbellOn = true
		} else {
			transportLog.Debug("host lacks length-less ioeventfd support, stripping PER_QUEUE_NOTIFY")
		}
	}

	sizes := device.QueueMaxSizes()
	queues := make([]QueueState, len(sizes))
	for i, sz := range sizes {
		queues[i].MaxSize = sz
	}

	d := &MmioV2Device{
		inner:        device,
		deviceVendor: vendor,
		doorbellOn:   doorbellOn,
		queues:       queues,
	}
	d.driverStatus.Store(StatusInit)
	return d
}

func (d *MmioV2Device) currentQueue() *QueueState {
	if int(d.queueSel) >= len(d.queues) {
		return nil
	}
	return &d.queues[d.queueSel]
}

// checkDriverStatus reports whether the currently required bits are set
// and the disqualifying bits are clear, matching check_driver_status in
// the source.
func (d *MmioV2Device) checkDriverStatus(set, clr uint32) bool {
	status := d.driverStatus.Load()
	return status&(set|clr) == set
}

// updateDriverStatus implements the device-status write path described in
// spec.md §4.2 and original_source's update_driver_status.
func (d *MmioV2Device) updateDriverStatus(v uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.driverStatus.Load()
	next, activate, reset := nextDriverStatus(cur, v)

	if next&StatusFailed != 0 && cur&StatusFailed == 0 && d.metrics != nil {
		d.metrics.StateMachineFailures.Inc()
	}

	if activate {
		if err := d.inner.Activate(); err != nil {
			transportLog.WithError(err).Warn("failed to activate MMIO virtio device")
			_ = d.inner.Reset()
			next = StatusFailed
		}
	}
	if reset {
		if err := d.inner.Reset(); err != nil {
			transportLog.WithError(err).Warn("failed to reset MMIO virtio device")
			next = StatusFailed
		}
	}

	d.driverStatus.Store(next)
}

// Read implements a 8/16/32-bit register read at offset, per spec.md
// §4.2's read rules. Unknown offsets or invalid widths are logged and
// leave data untouched (reads as zero from the caller's pre-zeroed
// buffer, by convention).
func (d *MmioV2Device) Read(offset uint64, data []byte) {
	if offset >= RegConfigSpaceOff {
		d.readDeviceConfig(offset-RegConfigSpaceOff, data)
		return
	}

	switch len(data) {
	case 4:
		v, ok := d.read32(uint32(offset))
		if !ok {
			transportLog.Debugf("unknown virtio mmio readl at 0x%x", offset)
			return
		}
		binary.LittleEndian.PutUint32(data, v)
	case 2:
		v, ok := d.read16(uint32(offset))
		if !ok {
			transportLog.Debugf("unknown virtio mmio readw at 0x%x", offset)
			return
		}
		binary.LittleEndian.PutUint16(data, v)
	default:
		transportLog.Debugf("unknown virtio mmio register read: 0x%x/%d", offset, len(data))
	}
}

func (d *MmioV2Device) read32(offset uint32) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch offset {
	case RegMagicValue:
		return MagicValue, true
	case RegVersion:
		return Version2, true
	case RegDeviceID:
		return d.inner.DeviceType(), true
	case RegVendorID:
		return d.deviceVendor, true
	case RegDeviceFeatures:
		return d.deviceFeaturesLocked(), true
	case RegQueueNumMax:
		if q := d.currentQueue(); q != nil {
			return uint32(q.MaxSize), true
		}
		return 0, true
	case RegQueueReady:
		if q := d.currentQueue(); q != nil && q.Ready {
			return 1, true
		}
		return 0, true
	case RegQueueNotify:
		if !d.doorbellOn {
			return 0, false
		}
		return d.queueSel, true
	case RegInterruptStatus:
		return d.tweakIntrFlags(d.interruptStatus.Load()), true
	case RegStatus:
		return d.driverStatus.Load(), true
	case RegConfigGeneration:
		return d.configGeneration.Load(), true
	default:
		return 0, false
	}
}

func (d *MmioV2Device) read16(offset uint32) (uint16, bool) {
	switch offset {
	case RegMsiCSR:
		if d.deviceVendor&FeatureMSIIntr != 0 {
			return MsiCSRSupported, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (d *MmioV2Device) deviceFeaturesLocked() uint32 {
	features := d.inner.AvailableFeatures(d.featuresSel)
	if d.featuresSel == 1 {
		features |= 0x1 // VirtIO version 1 support
	}
	return features
}

func (d *MmioV2Device) tweakIntrFlags(flags uint32) uint32 {
	if d.deviceVendor&FeatureIntrUsed != 0 {
		return flags | VirtioIntrVring
	}
	return flags
}

func (d *MmioV2Device) readDeviceConfig(offset uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.checkDriverStatus(StatusDriver, StatusFailed) {
		transportLog.Debug("cannot read device config before driver is ready")
		return
	}
	if err := d.inner.ReadConfig(offset, data); err != nil {
		transportLog.WithError(err).Warn("device config read failed")
	}
}

// Write implements a 8/16/32-bit register write at offset, per spec.md
// §4.2's write rules.
func (d *MmioV2Device) Write(offset uint64, data []byte) {
	if offset >= RegConfigSpaceOff && offset < RegDoorbellOff {
		d.writeDeviceConfig(offset-RegConfigSpaceOff, data)
		return
	}

	switch len(data) {
	case 4:
		v := binary.LittleEndian.Uint32(data)
		d.write32(uint32(offset), v)
	case 2:
		v := binary.LittleEndian.Uint16(data)
		d.write16(uint32(offset), v)
	default:
		transportLog.Debugf("unknown virtio mmio register write: 0x%x/%d", offset, len(data))
	}
}

func (d *MmioV2Device) write32(offset uint32, v uint32) {
	switch offset {
	case RegDeviceFeaturesSel:
		d.mu.Lock()
		d.featuresSel = v
		d.mu.Unlock()
	case RegDriverFeatures:
		d.setAckedFeatures(v)
	case RegDriverFeaturesSel:
		d.mu.Lock()
		d.ackFeatSel = v
		d.mu.Unlock()
	case RegQueueSel:
		d.mu.Lock()
		d.queueSel = v
		d.mu.Unlock()
	case RegQueueNum:
		d.updateQueueField(func(q *QueueState) { q.Size = uint16(v) })
	case RegQueueReady:
		d.updateQueueField(func(q *QueueState) { q.Ready = v == 1 })
	case RegInterruptAck:
		clearBits(&d.interruptStatus, v)
	case RegStatus:
		d.updateDriverStatus(v)
	case RegQueueDescLow:
		d.updateQueueField(func(q *QueueState) { q.DescLow = v })
	case RegQueueDescHigh:
		d.updateQueueField(func(q *QueueState) { q.DescHigh = v })
	case RegQueueAvailLow:
		d.updateQueueField(func(q *QueueState) { q.AvailLow = v })
	case RegQueueAvailHigh:
		d.updateQueueField(func(q *QueueState) { q.AvailHigh = v })
	case RegQueueUsedLow:
		d.updateQueueField(func(q *QueueState) { q.UsedLow = v })
	case RegQueueUsedHigh:
		d.updateQueueField(func(q *QueueState) { q.UsedHigh = v })
	case RegMsiAddressLow:
		d.mu.Lock()
		d.msi.addressLow = v
		d.mu.Unlock()
	case RegMsiAddressHigh:
		d.mu.Lock()
		d.msi.addressHigh = v
		d.mu.Unlock()
	case RegMsiData:
		d.mu.Lock()
		d.msi.data = v
		d.mu.Unlock()
	default:
		transportLog.Debugf("unknown virtio mmio writel to 0x%x", offset)
	}
}

func (d *MmioV2Device) write16(offset uint32, v uint16) {
	switch offset {
	case RegMsiCSR:
		d.updateMsiEnable(v)
	case RegMsiCommand:
		d.handleMsiCommand(v)
	default:
		transportLog.Debugf("unknown virtio mmio writew to 0x%x", offset)
	}
}

func (d *MmioV2Device) setAckedFeatures(v uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.checkDriverStatus(StatusDriver, StatusFeaturesOK|StatusFailed) {
		d.inner.AckFeatures(d.ackFeatSel, v)
	} else {
		transportLog.Debugf("ack virtio features in invalid state 0x%x", d.driverStatus.Load())
	}
}

// updateQueueField only takes effect when FEATURES_OK is set and
// DRIVER_OK/FAILED are clear, per spec.md §4.2's queue field gating rule
// (Testable Property #5).
func (d *MmioV2Device) updateQueueField(f func(q *QueueState)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.checkDriverStatus(StatusFeaturesOK, StatusDriverOK|StatusFailed) {
		transportLog.Debugf("update virtio queue in invalid state 0x%x", d.driverStatus.Load())
		return
	}
	if q := d.currentQueue(); q != nil {
		f(q)
	}
}

func (d *MmioV2Device) writeDeviceConfig(offset uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.checkDriverStatus(StatusDriver, StatusFailed) {
		transportLog.Debug("cannot write device config before driver is ready")
		return
	}
	if err := d.inner.WriteConfig(offset, data); err != nil {
		transportLog.WithError(err).Warn("device config write failed")
	}
}

// clearBits atomically clears the bits set in mask from counter, the Go
// equivalent of InterruptStatusRegister32::clear_bits's fetch_and loop.
func clearBits(counter *atomic.Uint32, mask uint32) {
	for {
		old := counter.Load()
		if counter.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// setBits atomically sets the bits in mask on counter.
func setBits(counter *atomic.Uint32, mask uint32) {
	for {
		old := counter.Load()
		if counter.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// DriverStatus exposes the current status for diagnostics/tests.
func (d *MmioV2Device) DriverStatus() uint32 {
	return d.driverStatus.Load()
}

// QueueStateAt returns a copy of the state of the queue at index, and
// false when index is out of range.
func (d *MmioV2Device) QueueStateAt(index uint32) (QueueState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(index) >= len(d.queues) {
		return QueueState{}, false
	}
	return d.queues[index], true
}
