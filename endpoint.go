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
	"time"
)

// endpoint is a common base for IN and OUT endpoints. The endpoint holds a
// reference to the interface it belongs to; the interface, config and
// device must stay alive for as long as the endpoint is in use.
type endpoint struct {
	intf *Interface
	Desc EndpointDesc
}

// String returns a human-readable description of the endpoint.
func (e *endpoint) String() string {
	return e.Desc.String()
}

// ClearHalt clears an endpoint halt/stall condition. A halted endpoint
// rejects all transfers until the condition is cleared.
func (e *endpoint) ClearHalt() error {
	if e.intf.config == nil {
		return fmt.Errorf("ClearHalt() called on %s of a released interface", e)
	}
	return e.intf.config.dev.ctx.libusb.clearHalt(e.intf.config.dev.handle, e.Desc.Address)
}

func (e *endpoint) transfer(buf []byte, timeout time.Duration) (int, error) {
	if e.intf.config == nil {
		return 0, fmt.Errorf("transfer on %s of a released interface", e)
	}
	if e.Desc.TransferType != TransferTypeBulk {
		return 0, fmt.Errorf("usbtmc: transfer on %s: only bulk endpoints are supported", e)
	}
	return e.intf.config.dev.ctx.libusb.bulk(e.intf.config.dev.handle, e.Desc.Address, buf, timeout)
}

// InEndpoint represents a device-to-host endpoint.
type InEndpoint struct {
	*endpoint
}

// Read reads data from the endpoint into buf, blocking until the transfer
// completes, fails or times out. It returns the number of bytes the device
// actually produced.
func (e *InEndpoint) Read(buf []byte, timeout time.Duration) (int, error) {
	if e.Desc.Direction != EndpointDirectionIn {
		return 0, fmt.Errorf("usbtmc: read: %s is not an IN endpoint", e)
	}
	return e.transfer(buf, timeout)
}

// OutEndpoint represents a host-to-device endpoint.
type OutEndpoint struct {
	*endpoint
}

// Write writes buf to the endpoint, blocking until the transfer completes,
// fails or times out. It returns the number of bytes the device actually
// accepted, which may be less than len(buf).
func (e *OutEndpoint) Write(buf []byte, timeout time.Duration) (int, error) {
	if e.Desc.Direction != EndpointDirectionOut {
		return 0, fmt.Errorf("usbtmc: write: %s is not an OUT endpoint", e)
	}
	return e.transfer(buf, timeout)
}
