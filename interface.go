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

// Interface is a representation of a claimed interface with an active
// alternate setting.
type Interface struct {
	Setting InterfaceSetting

	config *Config
}

// String returns a human-readable description of the interface and its
// alternate setting.
func (i *Interface) String() string {
	return fmt.Sprintf("%s,if=%d,alt=%d", i.config, i.Setting.Number, i.Setting.Alternate)
}

// Close releases the interface claim. After Close the interface's
// endpoints may no longer be used and the owning Config may be released.
func (i *Interface) Close() {
	if i.config == nil {
		return
	}
	i.config.dev.ctx.libusb.release(i.config.dev.handle, uint8(i.Setting.Number))
	i.config.mu.Lock()
	defer i.config.mu.Unlock()
	delete(i.config.claimed, i.Setting.Number)
	i.config = nil
}

func (i *Interface) openEndpoint(epAddr uint8) (*endpoint, error) {
	if i.config == nil {
		return nil, fmt.Errorf("openEndpoint(%02x) called on a released interface", epAddr)
	}
	for _, ep := range i.Setting.Endpoints {
		if ep.Address == epAddr {
			return &endpoint{intf: i, Desc: ep}, nil
		}
	}
	return nil, fmt.Errorf("%s does not have endpoint with address 0x%02x, available endpoints: %v", i, epAddr, i.Setting.Endpoints)
}

// InEndpoint returns the IN endpoint with the given address.
func (i *Interface) InEndpoint(epAddr uint8) (*InEndpoint, error) {
	ep, err := i.openEndpoint(epAddr)
	if err != nil {
		return nil, err
	}
	if ep.Desc.Direction != EndpointDirectionIn {
		return nil, fmt.Errorf("endpoint 0x%02x on %s is not an IN endpoint", epAddr, i)
	}
	return &InEndpoint{endpoint: ep}, nil
}

// OutEndpoint returns the OUT endpoint with the given address.
func (i *Interface) OutEndpoint(epAddr uint8) (*OutEndpoint, error) {
	ep, err := i.openEndpoint(epAddr)
	if err != nil {
		return nil, err
	}
	if ep.Desc.Direction != EndpointDirectionOut {
		return nil, fmt.Errorf("endpoint 0x%02x on %s is not an OUT endpoint", epAddr, i)
	}
	return &OutEndpoint{endpoint: ep}, nil
}
