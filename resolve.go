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

import "fmt"

// ResolveDevice finds and opens exactly one device matching the given
// vendor/product identity.
//
// With an empty serial, exactly one attached device may carry the
// vendor/product pair; more than one match fails with ErrAmbiguousIdentity.
// With a serial, candidates are further filtered by exact serial-number
// equality, which requires opening each candidate to read its serial
// string descriptor. More than one remaining match fails with
// ErrAmbiguousSerial.
//
// An empty USB bus fails with ErrNoDevices; no surviving match fails with
// ErrDeviceNotFound.
func (c *Context) ResolveDevice(vid, pid ID, serial string) (*Device, error) {
	var enumerated int
	devs, err := c.OpenDevices(func(desc *DeviceDesc) bool {
		enumerated++
		return desc.Vendor == vid && desc.Product == pid
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		return nil, fmt.Errorf("failed to enumerate devices matching %s:%s: %w", vid, pid, err)
	}
	if enumerated == 0 {
		return nil, ErrNoDevices
	}

	if serial == "" {
		switch len(devs) {
		case 0:
			return nil, ErrDeviceNotFound
		case 1:
			return devs[0], nil
		default:
			for _, d := range devs {
				d.Close()
			}
			return nil, ErrAmbiguousIdentity
		}
	}

	var matched []*Device
	for _, d := range devs {
		sn, err := d.SerialNumber()
		if err == nil && sn == serial {
			matched = append(matched, d)
			continue
		}
		if err != nil {
			debug.Printf("reading serial number of %s: %v", d, err)
		}
		d.Close()
	}
	switch len(matched) {
	case 0:
		return nil, ErrDeviceNotFound
	case 1:
		return matched[0], nil
	default:
		for _, d := range matched {
			d.Close()
		}
		return nil, ErrAmbiguousSerial
	}
}
