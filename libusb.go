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
	"unsafe"
)

/*
#cgo pkg-config: libusb-1.0
#include <stdlib.h>
#include <libusb.h>
*/
import "C"

type libusbContext C.libusb_context
type libusbDevice C.libusb_device
type libusbDevHandle C.libusb_device_handle

// libusbIntf is a set of trivial idiomatic Go wrappers around libusb C
// functions. The underlying code is generally not testable or difficult to
// test, since libusb interacts directly with the host USB stack.
//
// All bulk and control transfers are synchronous: the calling goroutine
// blocks until the transfer completes, fails or times out. This matches the
// strictly sequential request/response nature of the USBTMC protocol.
type libusbIntf interface {
	// context
	init() (*libusbContext, error)
	exit(*libusbContext)
	setDebug(*libusbContext, int)
	getDevices(*libusbContext) ([]*libusbDevice, error)

	// device
	dereference(*libusbDevice)
	getDeviceDesc(*libusbDevice) (*DeviceDesc, error)
	open(*libusbDevice) (*libusbDevHandle, error)

	close(*libusbDevHandle)
	getStringDesc(*libusbDevHandle, int) (string, error)
	getConfig(*libusbDevHandle) (uint8, error)
	setConfig(*libusbDevHandle, uint8) error
	setAutoDetach(*libusbDevHandle, int) error

	// interface
	claim(*libusbDevHandle, uint8) error
	release(*libusbDevHandle, uint8)
	setAlt(*libusbDevHandle, uint8, uint8) error

	// endpoint
	clearHalt(*libusbDevHandle, uint8) error
	bulk(*libusbDevHandle, uint8, []byte, time.Duration) (int, error)
	control(*libusbDevHandle, time.Duration, uint8, uint8, uint16, uint16, []byte) (int, error)
}

func fromErrno(errno C.int) error {
	err := TransferError(errno)
	if err == Success {
		return nil
	}
	return err
}

// libusbImpl is an implementation of libusbIntf using real CGo-wrapped
// libusb.
type libusbImpl struct{}

func (libusbImpl) init() (*libusbContext, error) {
	var ctx *C.libusb_context
	if err := fromErrno(C.libusb_init(&ctx)); err != nil {
		return nil, err
	}
	return (*libusbContext)(ctx), nil
}

func (libusbImpl) exit(c *libusbContext) {
	C.libusb_exit((*C.libusb_context)(c))
}

func (libusbImpl) setDebug(c *libusbContext, lvl int) {
	C.libusb_set_debug((*C.libusb_context)(c), C.int(lvl))
}

func (libusbImpl) getDevices(ctx *libusbContext) ([]*libusbDevice, error) {
	var list **C.libusb_device
	cnt := C.libusb_get_device_list((*C.libusb_context)(ctx), &list)
	if cnt < 0 {
		return nil, fromErrno(C.int(cnt))
	}
	devs := unsafe.Slice(list, int(cnt))
	ret := make([]*libusbDevice, 0, cnt)
	for _, d := range devs {
		ret = append(ret, (*libusbDevice)(d))
	}
	// The devices are dereferenced later, during Context teardown.
	C.libusb_free_device_list(list, 0)
	return ret, nil
}

func (libusbImpl) dereference(d *libusbDevice) {
	C.libusb_unref_device((*C.libusb_device)(d))
}

func (libusbImpl) getDeviceDesc(d *libusbDevice) (*DeviceDesc, error) {
	var desc C.struct_libusb_device_descriptor
	if err := fromErrno(C.libusb_get_device_descriptor((*C.libusb_device)(d), &desc)); err != nil {
		return nil, err
	}
	dev := &DeviceDesc{
		Bus:           int(C.libusb_get_bus_number((*C.libusb_device)(d))),
		Address:       int(C.libusb_get_device_address((*C.libusb_device)(d))),
		Spec:          BCD(desc.bcdUSB),
		Device:        BCD(desc.bcdDevice),
		Vendor:        ID(desc.idVendor),
		Product:       ID(desc.idProduct),
		Class:         Class(desc.bDeviceClass),
		SubClass:      Class(desc.bDeviceSubClass),
		Protocol:      Protocol(desc.bDeviceProtocol),
		iManufacturer: int(desc.iManufacturer),
		iProduct:      int(desc.iProduct),
		iSerialNumber: int(desc.iSerialNumber),
	}
	// Enumerate configurations in descriptor order.
	for i := 0; i < int(desc.bNumConfigurations); i++ {
		var cfg *C.struct_libusb_config_descriptor
		if err := fromErrno(C.libusb_get_config_descriptor((*C.libusb_device)(d), C.uint8_t(i), &cfg)); err != nil {
			return nil, err
		}
		c := ConfigDesc{
			Number:       int(cfg.bConfigurationValue),
			SelfPowered:  cfg.bmAttributes&0x40 != 0,
			RemoteWakeup: cfg.bmAttributes&0x20 != 0,
			MaxPower:     2 * Milliamperes(cfg.MaxPower),
		}
		for _, iface := range unsafe.Slice(cfg._interface, int(cfg.bNumInterfaces)) {
			if iface.num_altsetting == 0 {
				continue
			}
			alts := unsafe.Slice(iface.altsetting, int(iface.num_altsetting))
			descs := make([]InterfaceSetting, 0, len(alts))
			for _, alt := range alts {
				i := InterfaceSetting{
					Number:    int(alt.bInterfaceNumber),
					Alternate: int(alt.bAlternateSetting),
					Class:     Class(alt.bInterfaceClass),
					SubClass:  Class(alt.bInterfaceSubClass),
					Protocol:  Protocol(alt.bInterfaceProtocol),
				}
				for _, end := range unsafe.Slice(alt.endpoint, int(alt.bNumEndpoints)) {
					i.Endpoints = append(i.Endpoints, EndpointDesc{
						Address:       uint8(end.bEndpointAddress),
						Number:        int(end.bEndpointAddress & endpointNumMask),
						Direction:     EndpointDirection(end.bEndpointAddress&endpointDirectionMask != 0),
						TransferType:  TransferType(end.bmAttributes & transferTypeMask),
						MaxPacketSize: int(end.wMaxPacketSize),
					})
				}
				descs = append(descs, i)
			}
			c.Interfaces = append(c.Interfaces, InterfaceDesc{
				Number:      descs[0].Number,
				AltSettings: descs,
			})
		}
		C.libusb_free_config_descriptor(cfg)
		dev.Configs = append(dev.Configs, c)
	}
	return dev, nil
}

func (libusbImpl) open(d *libusbDevice) (*libusbDevHandle, error) {
	var handle *C.libusb_device_handle
	if err := fromErrno(C.libusb_open((*C.libusb_device)(d), &handle)); err != nil {
		return nil, err
	}
	return (*libusbDevHandle)(handle), nil
}

func (libusbImpl) close(d *libusbDevHandle) {
	C.libusb_close((*C.libusb_device_handle)(d))
}

func (libusbImpl) getStringDesc(d *libusbDevHandle, index int) (string, error) {
	// String descriptors are limited to 255 bytes on the wire.
	buf := make([]byte, 255)
	n := C.libusb_get_string_descriptor_ascii(
		(*C.libusb_device_handle)(d),
		C.uint8_t(index),
		(*C.uchar)(unsafe.Pointer(&buf[0])),
		C.int(len(buf)))
	if n < 0 {
		return "", fmt.Errorf("usbtmc: getstr: %w", fromErrno(n))
	}
	return string(buf[:n]), nil
}

func (libusbImpl) getConfig(d *libusbDevHandle) (uint8, error) {
	var cfg C.int
	if errno := C.libusb_get_configuration((*C.libusb_device_handle)(d), &cfg); errno < 0 {
		return 0, fromErrno(errno)
	}
	return uint8(cfg), nil
}

func (libusbImpl) setConfig(d *libusbDevHandle, cfg uint8) error {
	return fromErrno(C.libusb_set_configuration((*C.libusb_device_handle)(d), C.int(cfg)))
}

func (libusbImpl) setAutoDetach(d *libusbDevHandle, val int) error {
	err := fromErrno(C.libusb_set_auto_detach_kernel_driver((*C.libusb_device_handle)(d), C.int(val)))
	if err != nil && err != TransferError(ErrorNotSupported) {
		return err
	}
	return nil
}

func (libusbImpl) claim(d *libusbDevHandle, iface uint8) error {
	return fromErrno(C.libusb_claim_interface((*C.libusb_device_handle)(d), C.int(iface)))
}

func (libusbImpl) release(d *libusbDevHandle, iface uint8) {
	C.libusb_release_interface((*C.libusb_device_handle)(d), C.int(iface))
}

func (libusbImpl) setAlt(d *libusbDevHandle, iface, alt uint8) error {
	return fromErrno(C.libusb_set_interface_alt_setting((*C.libusb_device_handle)(d), C.int(iface), C.int(alt)))
}

func (libusbImpl) clearHalt(d *libusbDevHandle, ep uint8) error {
	return fromErrno(C.libusb_clear_halt((*C.libusb_device_handle)(d), C.uchar(ep)))
}

func (libusbImpl) bulk(d *libusbDevHandle, ep uint8, buf []byte, timeout time.Duration) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var cnt C.int
	if errno := C.libusb_bulk_transfer(
		(*C.libusb_device_handle)(d),
		C.uchar(ep),
		(*C.uchar)(unsafe.Pointer(&buf[0])),
		C.int(len(buf)),
		&cnt,
		C.uint(timeout/time.Millisecond)); errno < 0 {
		return 0, fromErrno(errno)
	}
	return int(cnt), nil
}

// The fake transport used in tests needs unique opaque pointers of the
// libusb handle types. libusb does not export allocators for them, so a
// one-byte malloc provides an address that is never dereferenced.
func newContextPointer() *libusbContext {
	return (*libusbContext)(C.malloc(1))
}

func newDevicePointer() *libusbDevice {
	return (*libusbDevice)(C.malloc(1))
}

func newDevHandlePointer() *libusbDevHandle {
	return (*libusbDevHandle)(C.malloc(1))
}

func (libusbImpl) control(d *libusbDevHandle, timeout time.Duration, rType, request uint8, val, idx uint16, data []byte) (int, error) {
	var p *C.uchar
	if len(data) > 0 {
		p = (*C.uchar)(unsafe.Pointer(&data[0]))
	}
	n := C.libusb_control_transfer(
		(*C.libusb_device_handle)(d),
		C.uint8_t(rType),
		C.uint8_t(request),
		C.uint16_t(val),
		C.uint16_t(idx),
		p,
		C.uint16_t(len(data)),
		C.uint(timeout/time.Millisecond))
	if n < 0 {
		return int(n), fromErrno(n)
	}
	return int(n), nil
}
