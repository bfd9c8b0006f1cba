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
)

// Config represents a USB device set to use a particular configuration.
// Only one Config of a particular device can be used at any one time.
// To access device endpoints, claim an interface and its alternate
// setting number through a call to Interface().
type Config struct {
	Desc ConfigDesc

	dev *Device

	// Claimed interfaces
	mu      sync.Mutex
	claimed map[int]bool
}

// String returns the human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("%s,config=%d", c.dev, c.Desc.Number)
}

// Interface claims and returns an interface on a USB device.
// num specifies the number of an interface to claim, and alt specifies the
// alternate setting number for that interface.
// The interface must be claimed before its alternate setting can be
// activated; the claim is released by Interface.Close.
func (c *Config) Interface(num, alt int) (*Interface, error) {
	if c.dev == nil {
		return nil, fmt.Errorf("Interface(%d, %d) called on %s after Close", num, alt, c)
	}

	var ifDesc *InterfaceDesc
	for i := range c.Desc.Interfaces {
		if c.Desc.Interfaces[i].Number == num {
			ifDesc = &c.Desc.Interfaces[i]
			break
		}
	}
	if ifDesc == nil {
		return nil, fmt.Errorf("interface %d not found in %s", num, c)
	}
	var setting *InterfaceSetting
	for i := range ifDesc.AltSettings {
		if ifDesc.AltSettings[i].Alternate == alt {
			setting = &ifDesc.AltSettings[i]
			break
		}
	}
	if setting == nil {
		return nil, fmt.Errorf("alternate setting %d not found for interface %d in %s", alt, num, c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[num] {
		return nil, fmt.Errorf("interface %d on %s is already claimed", num, c)
	}

	if err := c.dev.ctx.libusb.claim(c.dev.handle, uint8(num)); err != nil {
		return nil, fmt.Errorf("failed to claim interface %d on %s: %w", num, c, err)
	}
	if err := c.dev.ctx.libusb.setAlt(c.dev.handle, uint8(num), uint8(alt)); err != nil {
		c.dev.ctx.libusb.release(c.dev.handle, uint8(num))
		return nil, fmt.Errorf("failed to set alternate setting %d on interface %d of %s: %w", alt, num, c, err)
	}

	c.claimed[num] = true
	return &Interface{
		Setting: *setting,
		config:  c,
	}, nil
}

// Close releases the underlying device, allowing the caller to switch the
// device to a different configuration. Close fails while claimed
// interfaces remain open; they must be released first.
func (c *Config) Close() error {
	if c.dev == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.claimed) > 0 {
		var ifs []int
		for k := range c.claimed {
			ifs = append(ifs, k)
		}
		return fmt.Errorf("failed to release %s, interfaces %v are still open", c, ifs)
	}
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.dev.claimed = nil
	c.dev = nil
	return nil
}
