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

import "errors"

// TransferError is an error code reported by the USB transport.
// The values mirror libusb error codes and pass through the framing
// layer unchanged.
type TransferError int

const (
	Success           TransferError = 0
	ErrorIO           TransferError = -1
	ErrorInvalidParam TransferError = -2
	ErrorAccess       TransferError = -3
	ErrorNoDevice     TransferError = -4
	ErrorNotFound     TransferError = -5
	ErrorBusy         TransferError = -6
	ErrorTimeout      TransferError = -7
	ErrorOverflow     TransferError = -8
	ErrorPipe         TransferError = -9
	ErrorInterrupted  TransferError = -10
	ErrorNoMem        TransferError = -11
	ErrorNotSupported TransferError = -12
	ErrorOther        TransferError = -99
)

var transferErrorString = map[TransferError]string{
	Success:           "success",
	ErrorIO:           "i/o error",
	ErrorInvalidParam: "invalid param",
	ErrorAccess:       "bad access",
	ErrorNoDevice:     "no device",
	ErrorNotFound:     "not found",
	ErrorBusy:         "device or resource busy",
	ErrorTimeout:      "timeout",
	ErrorOverflow:     "overflow",
	ErrorPipe:         "pipe error",
	ErrorInterrupted:  "interrupted",
	ErrorNoMem:        "out of memory",
	ErrorNotSupported: "not supported",
	ErrorOther:        "unknown error",
}

func (e TransferError) Error() string {
	if s, ok := transferErrorString[e]; ok {
		return "libusb: " + s
	}
	return "libusb: unknown error code"
}

// Failures in device resolution, endpoint negotiation and message framing.
// All of them are matchable with errors.Is.
var (
	// ErrNoDevices is returned when USB enumeration finds no devices at all.
	ErrNoDevices = errors.New("usbtmc: no USB devices attached")
	// ErrDeviceNotFound is returned when no attached device matches the
	// requested identity.
	ErrDeviceNotFound = errors.New("usbtmc: no matching device found")
	// ErrAmbiguousIdentity is returned when more than one device matches a
	// vendor/product ID pair and no serial number was given to disambiguate.
	ErrAmbiguousIdentity = errors.New("usbtmc: multiple devices match the vendor/product ID, a serial number is required")
	// ErrAmbiguousSerial is returned when more than one device matches a
	// vendor/product/serial triple. This signals a misbehaving device
	// population; serial numbers are supposed to be unique.
	ErrAmbiguousSerial = errors.New("usbtmc: multiple devices match the vendor/product ID and serial number")
	// ErrEndpointNotFound is returned when a device has no USBTMC-capable
	// alternate setting, or its USBTMC alternate setting lacks a bulk
	// endpoint in either direction.
	ErrEndpointNotFound = errors.New("usbtmc: no USBTMC interface with bulk IN and OUT endpoints")
	// ErrInvalidTerminator is returned for read terminators that are not
	// exactly one byte long.
	ErrInvalidTerminator = errors.New("usbtmc: terminator must be a single byte")
	// ErrTerminatorNotSupported is returned for terminator-gated reads when
	// the device capabilities report no terminator support.
	ErrTerminatorNotSupported = errors.New("usbtmc: device does not support read terminators")
	// ErrCannotEncode is returned when a string operation is given text that
	// cannot be represented in the instrument encoding.
	ErrCannotEncode = errors.New("usbtmc: string not representable in the instrument encoding")
	// ErrInvalidVISA is returned for malformed VISA resource strings.
	ErrInvalidVISA = errors.New("usbtmc: invalid VISA resource string")
)
