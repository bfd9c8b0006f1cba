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

// Package usbtmc provides host-side communication with USB Test &
// Measurement Class instruments over raw USB bulk transfers.
//
// The package locates an instrument by vendor/product/serial identity,
// negotiates its USBTMC interface and bulk endpoints, and exchanges
// arbitrarily large messages with the device, fragmenting writes and
// reassembling reads according to the USBTMC bulk framing protocol.
package usbtmc

import (
	"fmt"
	"sync"
	"time"
)

// DefaultControlTimeout is the default timeout applied to control
// transfers of newly opened devices.
const DefaultControlTimeout = 5 * time.Second

// Context manages all resources related to USB device handling.
type Context struct {
	ctx    *libusbContext
	libusb libusbIntf

	mu sync.Mutex
	// devices tracks every Device created through this Context, open or
	// not. A closed Device stays tracked so it can be reopened; the
	// underlying libusb device is only dereferenced when the Context is
	// closed.
	devices map[*Device]bool
}

// NewContext initializes a new Context backed by the host USB stack.
func NewContext() *Context {
	c, err := newContextWithImpl(libusbImpl{})
	if err != nil {
		panic(err)
	}
	return c
}

func newContextWithImpl(impl libusbIntf) (*Context, error) {
	ctx, err := impl.init()
	if err != nil {
		return nil, err
	}
	return &Context{
		ctx:     ctx,
		libusb:  impl,
		devices: make(map[*Device]bool),
	}, nil
}

// Debug changes the debug level of the Context. Level 0 disables debug
// output, higher levels enable progressively more.
func (c *Context) Debug(level int) {
	setDebug(level > 0)
	c.libusb.setDebug(c.ctx, level)
}

// OpenDevices calls opener with each enumerated device.
// If the opener returns true, the device is opened and a Device is returned
// if the operation succeeds.
// Every Device returned (whether an error is also returned or not) must be
// closed.
// If there are any errors enumerating the devices, the final one is
// returned along with any successfully opened devices.
func (c *Context) OpenDevices(opener func(desc *DeviceDesc) bool) ([]*Device, error) {
	if c.ctx == nil {
		return nil, fmt.Errorf("OpenDevices() called on a closed Context")
	}
	list, err := c.libusb.getDevices(c.ctx)
	if err != nil {
		return nil, err
	}

	var reterr error
	var ret []*Device
	for _, dev := range list {
		desc, err := c.libusb.getDeviceDesc(dev)
		if err != nil {
			c.libusb.dereference(dev)
			reterr = err
			continue
		}

		if !opener(desc) {
			c.libusb.dereference(dev)
			continue
		}
		handle, err := c.libusb.open(dev)
		if err != nil {
			c.libusb.dereference(dev)
			reterr = err
			continue
		}
		d := &Device{
			handle:         handle,
			dev:            dev,
			ctx:            c,
			Desc:           desc,
			ControlTimeout: DefaultControlTimeout,
		}
		c.mu.Lock()
		c.devices[d] = true
		c.mu.Unlock()
		ret = append(ret, d)
	}
	return ret, reterr
}

// Close releases the Context and all resources associated with it.
// Close fails if any Device opened through this Context is still open.
func (c *Context) Close() error {
	if c.ctx == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var open int
	for _, isOpen := range c.devices {
		if isOpen {
			open++
		}
	}
	if open > 0 {
		return fmt.Errorf("Context.Close called while %d device(s) are still open, close them first", open)
	}
	for d := range c.devices {
		c.libusb.dereference(d.dev)
	}
	c.devices = make(map[*Device]bool)
	c.libusb.exit(c.ctx)
	c.ctx = nil
	return nil
}
