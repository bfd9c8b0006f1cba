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

import "strconv"

// Class is a USB-defined class code, as reported in device and interface
// descriptors.
type Class uint8

const (
	ClassPerInterface Class = 0x00
	ClassAudio        Class = 0x01
	ClassComm         Class = 0x02
	ClassHID          Class = 0x03
	ClassPrinter      Class = 0x07
	ClassPTP          Class = 0x06
	ClassMassStorage  Class = 0x08
	ClassHub          Class = 0x09
	ClassData         Class = 0x0a
	ClassWireless     Class = 0xe0
	ClassApplication  Class = 0xfe
	ClassVendorSpec   Class = 0xff
)

var classDescription = map[Class]string{
	ClassPerInterface: "per-interface",
	ClassAudio:        "audio",
	ClassComm:         "communications",
	ClassHID:          "human interface device",
	ClassPrinter:      "printer",
	ClassPTP:          "picture transfer protocol",
	ClassMassStorage:  "mass storage",
	ClassHub:          "hub",
	ClassData:         "data",
	ClassWireless:     "wireless",
	ClassApplication:  "application",
	ClassVendorSpec:   "vendor-specific",
}

func (c Class) String() string {
	if d, ok := classDescription[c]; ok {
		return d
	}
	return strconv.Itoa(int(c))
}

// Protocol is the interface protocol code within a class/subclass pair.
type Protocol uint8

func (p Protocol) String() string {
	return strconv.Itoa(int(p))
}

// USBTMC interfaces are identified by the application class with the
// test-and-measurement subclass. Protocol 0 is plain USBTMC, protocol 1
// is the USB488 extension.
const (
	tmcSubClass    Class    = 0x03
	ProtocolTMC    Protocol = 0
	ProtocolUSB488 Protocol = 1
)

// EndpointDirection defines the direction of data flow, seen from the host.
type EndpointDirection bool

const (
	endpointNumMask       = 0x0f
	endpointDirectionMask = 0x80
	// EndpointDirectionIn marks a device-to-host endpoint.
	EndpointDirectionIn EndpointDirection = true
	// EndpointDirectionOut marks a host-to-device endpoint.
	EndpointDirectionOut EndpointDirection = false
)

var endpointDirectionDescription = map[EndpointDirection]string{
	EndpointDirectionIn:  "IN",
	EndpointDirectionOut: "OUT",
}

func (ed EndpointDirection) String() string {
	return endpointDirectionDescription[ed]
}

// TransferType defines the transfer type of an endpoint.
type TransferType uint8

const (
	TransferTypeControl     TransferType = 0
	TransferTypeIsochronous TransferType = 1
	TransferTypeBulk        TransferType = 2
	TransferTypeInterrupt   TransferType = 3
	transferTypeMask                     = 0x03
)

var transferTypeDescription = map[TransferType]string{
	TransferTypeControl:     "control",
	TransferTypeIsochronous: "isochronous",
	TransferTypeBulk:        "bulk",
	TransferTypeInterrupt:   "interrupt",
}

func (tt TransferType) String() string {
	return transferTypeDescription[tt]
}
