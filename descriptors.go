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

// DeviceDesc is a representation of a USB device descriptor.
type DeviceDesc struct {
	// Bus information
	Bus     int // The bus on which the device was detected
	Address int // The address of the device on the bus

	// Version information
	Spec   BCD // USB Specification Release Number
	Device BCD // The device version

	// Product information
	Vendor  ID // The Vendor identifier
	Product ID // The Product identifier

	// Protocol information
	Class    Class    // The class of this device
	SubClass Class    // The sub-class (within the class) of this device
	Protocol Protocol // The protocol (within the sub-class) of this device

	// Configurations in descriptor enumeration order.
	Configs []ConfigDesc

	// String descriptor indexes.
	iManufacturer int
	iProduct      int
	iSerialNumber int
}

// String returns a human-readable version of the device descriptor.
func (d *DeviceDesc) String() string {
	return fmt.Sprintf("%d.%d: %s:%s", d.Bus, d.Address, d.Vendor, d.Product)
}

// ConfigDesc contains the information about a USB device configuration,
// extracted from the device descriptor.
type ConfigDesc struct {
	// Number is the configuration number.
	Number int
	// SelfPowered is true if the device is powered externally, i.e. not
	// drawing power from the USB bus.
	SelfPowered bool
	// RemoteWakeup is true if the device supports remote wakeup.
	RemoteWakeup bool
	// MaxPower is the maximum current the device draws from the USB bus
	// in this configuration.
	MaxPower Milliamperes
	// Interfaces has a list of USB interfaces available in this
	// configuration, in descriptor enumeration order.
	Interfaces []InterfaceDesc
}

// String returns the human-readable description of the configuration
// descriptor.
func (c ConfigDesc) String() string {
	return fmt.Sprintf("config=%d", c.Number)
}

// InterfaceDesc contains information about a USB interface, extracted from
// the device descriptor.
type InterfaceDesc struct {
	// Number is the number of this interface.
	Number int
	// AltSettings is a list of alternate settings supported by the
	// interface, in descriptor enumeration order.
	AltSettings []InterfaceSetting
}

// String returns a human-readable description of the interface descriptor
// and its alternate settings.
func (i InterfaceDesc) String() string {
	return fmt.Sprintf("interface %d (%d alternate settings)", i.Number, len(i.AltSettings))
}

// InterfaceSetting contains information about a USB interface with a
// particular alternate setting, extracted from the device descriptor.
type InterfaceSetting struct {
	// Number is the number of this interface, the same as in InterfaceDesc.
	Number int
	// Alternate is the number of this alternate setting.
	Alternate int
	// Class is the USB-IF (Implementers Forum) class code.
	Class Class
	// SubClass is the USB-IF subclass code, qualified by the Class.
	SubClass Class
	// Protocol is the USB-IF protocol code, qualified by Class and SubClass.
	Protocol Protocol
	// Endpoints enumerates the endpoints available in this alternate
	// setting, in descriptor enumeration order.
	Endpoints []EndpointDesc
}

// IsTMC reports whether this alternate setting identifies a
// USBTMC-compliant interface: application class, test-and-measurement
// subclass, and either the plain USBTMC or the USB488 protocol.
func (s InterfaceSetting) IsTMC() bool {
	return s.Class == ClassApplication &&
		s.SubClass == tmcSubClass &&
		(s.Protocol == ProtocolTMC || s.Protocol == ProtocolUSB488)
}

// String returns a human-readable description of the particular
// configuration of an interface.
func (s InterfaceSetting) String() string {
	return fmt.Sprintf("interface %d alt %d (class %s, subclass %02x, protocol %s)", s.Number, s.Alternate, s.Class, uint8(s.SubClass), s.Protocol)
}

// EndpointDesc contains the information about an endpoint, extracted from
// the device descriptor.
type EndpointDesc struct {
	// Address is the unique identifier of the endpoint within the
	// interface: the endpoint number combined with the direction bit.
	Address uint8
	// Number represents the endpoint number, identical for an IN/OUT
	// endpoint pair.
	Number int
	// Direction defines whether the data is flowing IN or OUT from the
	// host perspective.
	Direction EndpointDirection
	// TransferType defines the endpoint transfer type.
	TransferType TransferType
	// MaxPacketSize is the maximum USB packet size for a single frame.
	MaxPacketSize int
}

// String returns the human-readable description of the endpoint.
func (e EndpointDesc) String() string {
	return fmt.Sprintf("ep #%d %s %s [%d bytes]", e.Number, e.Direction, e.TransferType, e.MaxPacketSize)
}
