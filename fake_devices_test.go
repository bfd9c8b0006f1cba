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

// Fixture devices for the fake USB stack. The main fixture mimics a
// Keysight E36103B bench power supply: vendor 10893 (0x2a8d), product
// 5634 (0x1602), a single configuration with one USBTMC interface
// exposing bulk endpoints 0x81/0x01 and an unrelated interrupt endpoint.

const (
	fixtureVendor  ID = 10893
	fixtureProduct ID = 5634
	fixtureSerial     = "MY57800123"
)

func tmcEndpoints() []EndpointDesc {
	return []EndpointDesc{
		{Address: 0x83, Number: 3, Direction: EndpointDirectionIn, TransferType: TransferTypeInterrupt, MaxPacketSize: 64},
		{Address: 0x81, Number: 1, Direction: EndpointDirectionIn, TransferType: TransferTypeBulk, MaxPacketSize: 512},
		{Address: 0x01, Number: 1, Direction: EndpointDirectionOut, TransferType: TransferTypeBulk, MaxPacketSize: 512},
	}
}

func tmcDeviceDesc(serialIdx int) *DeviceDesc {
	return &DeviceDesc{
		Bus:           1,
		Address:       5,
		Spec:          Version(2, 0),
		Device:        Version(1, 0),
		Vendor:        fixtureVendor,
		Product:       fixtureProduct,
		Class:         ClassPerInterface,
		iManufacturer: 1,
		iProduct:      2,
		iSerialNumber: serialIdx,
		Configs: []ConfigDesc{{
			Number:   1,
			MaxPower: 100,
			Interfaces: []InterfaceDesc{{
				Number: 0,
				AltSettings: []InterfaceSetting{{
					Number:    0,
					Alternate: 0,
					Class:     ClassApplication,
					SubClass:  tmcSubClass,
					Protocol:  ProtocolTMC,
					Endpoints: tmcEndpoints(),
				}},
			}},
		}},
	}
}

// newTMCFixture returns a fake instrument with terminator support and a
// couple of canned SCPI responses.
func newTMCFixture(serial string) *fakeDevice {
	tmc := &fakeTMC{
		responses: map[string]string{
			"*IDN?": "Keysight Technologies,E36103B," + serial + ",1.0.2-1.0\n",
			"VOLT?": "1.000000\n",
		},
	}
	tmc.capabilities[capIndexTermChar] = 1
	return &fakeDevice{
		devDesc: tmcDeviceDesc(3),
		strDesc: map[int]string{
			1: "Keysight Technologies",
			2: "E36103B",
			3: serial,
		},
		tmc: tmc,
	}
}

// newHubFixture returns a fake device with no USBTMC function at all.
func newHubFixture() *fakeDevice {
	return &fakeDevice{
		devDesc: &DeviceDesc{
			Bus:     1,
			Address: 2,
			Spec:    Version(2, 0),
			Vendor:  0x8888,
			Product: 0x0002,
			Class:   ClassHub,
			Configs: []ConfigDesc{{
				Number: 1,
				Interfaces: []InterfaceDesc{{
					Number: 0,
					AltSettings: []InterfaceSetting{{
						Number:   0,
						Class:    ClassHub,
						SubClass: 0,
						Protocol: 0,
					}},
				}},
			}},
		},
		strDesc: map[int]string{},
	}
}
