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

// findTMCSetting walks the device's configuration/interface/alt-setting
// tree in descriptor enumeration order and returns the first alternate
// setting that identifies a USBTMC interface, along with its owning
// configuration number.
func findTMCSetting(desc *DeviceDesc) (cfgNum int, setting InterfaceSetting, found bool) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.IsTMC() {
					return cfg.Number, alt, true
				}
			}
		}
	}
	return 0, InterfaceSetting{}, false
}

// bulkEndpoints returns the first bulk IN and first bulk OUT endpoint of
// the alternate setting.
func bulkEndpoints(setting InterfaceSetting) (in, out *EndpointDesc) {
	for i := range setting.Endpoints {
		ep := &setting.Endpoints[i]
		if ep.TransferType != TransferTypeBulk {
			continue
		}
		if ep.Direction == EndpointDirectionIn && in == nil {
			in = ep
		}
		if ep.Direction == EndpointDirectionOut && out == nil {
			out = ep
		}
	}
	return in, out
}

// negotiate activates the first USBTMC-capable alternate setting of the
// device and returns the claimed resources: the active configuration, the
// claimed interface and its bulk IN/OUT endpoint pair.
//
// The activation order is fixed by USB semantics: the owning configuration
// is made active first, then the interface is claimed, then the alternate
// setting is activated. Exactly the first qualifying candidate is used; an
// activation failure on it is returned as-is rather than trying further
// candidates.
func negotiate(dev *Device) (*Config, *Interface, *InEndpoint, *OutEndpoint, error) {
	cfgNum, setting, ok := findTMCSetting(dev.Desc)
	if !ok {
		return nil, nil, nil, nil, ErrEndpointNotFound
	}
	inDesc, outDesc := bulkEndpoints(setting)
	if inDesc == nil || outDesc == nil {
		return nil, nil, nil, nil, ErrEndpointNotFound
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	intf, err := cfg.Interface(setting.Number, setting.Alternate)
	if err != nil {
		cfg.Close()
		return nil, nil, nil, nil, err
	}
	in, err := intf.InEndpoint(inDesc.Address)
	if err == nil {
		var out *OutEndpoint
		out, err = intf.OutEndpoint(outDesc.Address)
		if err == nil {
			debug.Printf("negotiated %s: bulk in 0x%02x, bulk out 0x%02x", intf, inDesc.Address, outDesc.Address)
			return cfg, intf, in, out, nil
		}
	}
	intf.Close()
	cfg.Close()
	return nil, nil, nil, nil, fmt.Errorf("failed to open bulk endpoints on %s: %w", dev, err)
}
