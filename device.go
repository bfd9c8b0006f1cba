// Copyright 2024 the usbtmc Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package usbtmc

import (
	"fmt"
	"sync"
	"time"
)

// Device represents an opened USB device.
// Device allows sending USB control commands through the Control() method.
// For data transfers select a device configuration through a call to
// Config().
// A Device must be Close()d after use. A closed Device can be reopened
// with Reopen(), which yields a fresh underlying connection to the same
// physical device.
type Device struct {
	handle *libusbDevHandle
	dev    *libusbDevice
	ctx    *Context

	// Embed the device information for easy access
	Desc *DeviceDesc
	// Timeout for control commands
	ControlTimeout time.Duration

	// Claimed config
	mu      sync.Mutex
	claimed *Config

	autodetach bool
}

// String represents a human readable representation of the device.
func (d *Device) String() string {
	return fmt.Sprintf("vid=%s,pid=%s,bus=%d,addr=%d", d.Desc.Vendor, d.Desc.Product, d.Desc.Bus, d.Desc.Address)
}

// ActiveConfigNum returns the config number of the active configuration.
// The value corresponds to the ConfigDesc.Number field of one of the
// ConfigDescs of this Device.
func (d *Device) ActiveConfigNum() (int, error) {
	if d.handle == nil {
		return 0, fmt.Errorf("ActiveConfigNum() called on %s after Close", d)
	}
	ret, err := d.ctx.libusb.getConfig(d.handle)
	return int(ret), err
}

// Config returns a USB device set to use a particular config.
// The cfgNum provided is the config number (not the index) of the
// configuration to set, which corresponds to the ConfigDesc.Number field.
// USB supports only one active config per device at a time. Config claims
// the device before setting the desired config and keeps it locked until
// Close is called.
// A claimed config needs to be Close()d after use.
func (d *Device) Config(cfgNum int) (*Config, error) {
	if d.handle == nil {
		return nil, fmt.Errorf("Config(%d) called on %s after Close", cfgNum, d)
	}
	var desc *ConfigDesc
	for i := range d.Desc.Configs {
		if d.Desc.Configs[i].Number == cfgNum {
			desc = &d.Desc.Configs[i]
			break
		}
	}
	if desc == nil {
		return nil, fmt.Errorf("configuration %d not found in the descriptor of %s", cfgNum, d)
	}
	cfg := &Config{
		Desc:    *desc,
		dev:     d,
		claimed: make(map[int]bool),
	}

	if activeCfgNum, err := d.ActiveConfigNum(); err != nil {
		return nil, fmt.Errorf("failed to query active config of %s: %w", d, err)
	} else if cfgNum != activeCfgNum {
		if err := d.ctx.libusb.setConfig(d.handle, uint8(cfgNum)); err != nil {
			return nil, fmt.Errorf("failed to set active config %d for %s: %w", cfgNum, d, err)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed != nil {
		return nil, fmt.Errorf("%s already has an active configuration %d", d, d.claimed.Desc.Number)
	}
	d.claimed = cfg
	return cfg, nil
}

// Control sends a control request to the device.
func (d *Device) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	if d.handle == nil {
		return 0, fmt.Errorf("Control() called on %s after Close", d)
	}
	return d.ctx.libusb.control(d.handle, d.ControlTimeout, rType, request, val, idx, data)
}

// GetStringDescriptor returns a device string descriptor with the given
// index number, converted to ASCII.
func (d *Device) GetStringDescriptor(descIndex int) (string, error) {
	if d.handle == nil {
		return "", fmt.Errorf("GetStringDescriptor(%d) called on %s after Close", descIndex, d)
	}
	return d.ctx.libusb.getStringDesc(d.handle, descIndex)
}

// Manufacturer returns the device's manufacturer name.
func (d *Device) Manufacturer() (string, error) {
	return d.GetStringDescriptor(d.Desc.iManufacturer)
}

// Product returns the device's product name.
func (d *Device) Product() (string, error) {
	return d.GetStringDescriptor(d.Desc.iProduct)
}

// SerialNumber returns the device's serial number.
func (d *Device) SerialNumber() (string, error) {
	return d.GetStringDescriptor(d.Desc.iSerialNumber)
}

// SetAutoDetach enables/disables automatic kernel driver detachment.
// When autodetach is enabled the kernel driver is detached from the
// interface when it is claimed and reattached when it is released.
func (d *Device) SetAutoDetach(autodetach bool) error {
	if d.handle == nil {
		return fmt.Errorf("SetAutoDetach(%v) called on %s after Close", autodetach, d)
	}
	d.autodetach = autodetach
	var val int
	if autodetach {
		val = 1
	}
	return d.ctx.libusb.setAutoDetach(d.handle, val)
}

// Close closes the device. Close fails if the device still has an active
// configuration; derived resources must be released first, in the reverse
// order of their acquisition.
func (d *Device) Close() error {
	if d.handle == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed != nil {
		return fmt.Errorf("can't release the device %s, it has an open config %d", d, d.claimed.Desc.Number)
	}
	d.ctx.libusb.close(d.handle)
	d.handle = nil
	d.ctx.mu.Lock()
	d.ctx.devices[d] = false
	d.ctx.mu.Unlock()
	return nil
}

// Reopen opens a fresh connection to the same physical device after a
// Close. The device identity and descriptor are preserved; all derived
// resources (configs, interfaces, endpoints) of the previous connection
// are gone and must be negotiated again.
func (d *Device) Reopen() error {
	if d.handle != nil {
		return fmt.Errorf("Reopen() called on %s while it is open", d)
	}
	handle, err := d.ctx.libusb.open(d.dev)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", d, err)
	}
	d.handle = handle
	d.ctx.mu.Lock()
	d.ctx.devices[d] = true
	d.ctx.mu.Unlock()
	if d.autodetach {
		return d.ctx.libusb.setAutoDetach(d.handle, 1)
	}
	return nil
}
