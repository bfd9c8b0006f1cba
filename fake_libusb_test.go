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
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// outTransfer records one bulk-OUT transfer received by a fake device, for
// assertions on header construction and fragmenting behavior.
type outTransfer struct {
	msgID       uint8
	bTag        uint8
	bTagInverse uint8
	size        uint32
	eom         bool
	wireLen     int // total bytes on the wire, including header and padding
}

// readRequest is a pending REQUEST_DEV_DEP_MSG_IN.
type readRequest struct {
	bTag     uint8
	size     int
	useTerm  bool
	termChar byte
}

// fakeTMC simulates the USBTMC function of a fake device: it parses the
// bulk headers of OUT transfers, reassembles command messages, and serves
// responses to read requests.
type fakeTMC struct {
	// responses maps a received command (terminator stripped) to the
	// bytes served on the next read request.
	responses map[string]string
	// echo serves every completed message back verbatim instead of
	// consulting responses.
	echo bool
	// capabilities is returned by GET_CAPABILITIES control requests.
	capabilities [capabilitiesLen]byte
	// capErr fails the capability control transfer.
	capErr error
	// acceptLimit caps the payload bytes accepted per OUT transfer.
	// Zero accepts everything.
	acceptLimit int
	// bulkErr fails the next bulk transfer in either direction.
	bulkErr error

	// reassembly state
	received []byte
	messages []string
	outbox   []byte
	pending  *readRequest

	transfers  []outTransfer
	clearHalts []uint8
}

func (f *fakeTMC) handleOut(buf []byte) (int, error) {
	if len(buf) < headerLen {
		return 0, TransferError(ErrorInvalidParam)
	}
	msgID, bTag, inv := buf[0], buf[1], buf[2]
	if inv != ^bTag {
		return 0, fmt.Errorf("fake device: bTag %d with bad inverse %d", bTag, inv)
	}
	size := binary.LittleEndian.Uint32(buf[4:8])
	eom := buf[8]&1 != 0
	f.transfers = append(f.transfers, outTransfer{
		msgID:       msgID,
		bTag:        bTag,
		bTagInverse: inv,
		size:        size,
		eom:         eom,
		wireLen:     len(buf),
	})

	switch msgID {
	case msgDevDepOut:
		payload := buf[headerLen:]
		if uint32(len(payload)) > size {
			payload = payload[:size]
		}
		accepted := len(payload)
		if f.acceptLimit > 0 && accepted > f.acceptLimit {
			accepted = f.acceptLimit
		}
		f.received = append(f.received, payload[:accepted]...)
		if eom && accepted == int(size) {
			msg := string(f.received)
			f.received = nil
			f.messages = append(f.messages, msg)
			if f.echo {
				f.outbox = append(f.outbox, msg...)
			} else if resp, ok := f.responses[strings.TrimRight(msg, "\r\n")]; ok {
				f.outbox = append(f.outbox, resp...)
			}
		}
		if accepted < int(size) {
			return headerLen + accepted, nil
		}
		return len(buf), nil
	case msgRequestDevDepIn:
		f.pending = &readRequest{
			bTag:     bTag,
			size:     int(size),
			useTerm:  buf[8]&1 != 0,
			termChar: buf[9],
		}
		return len(buf), nil
	default:
		return 0, fmt.Errorf("fake device: unsupported bulk message ID %d", msgID)
	}
}

func (f *fakeTMC) handleIn(buf []byte) (int, error) {
	req := f.pending
	if req == nil {
		return 0, TransferError(ErrorTimeout)
	}
	f.pending = nil

	n := len(f.outbox)
	if n > req.size {
		n = req.size
	}
	payload := f.outbox[:n]
	eom := false
	if req.useTerm {
		if idx := strings.IndexByte(string(payload), req.termChar); idx >= 0 {
			payload = payload[:idx+1]
			eom = true
		}
	}
	f.outbox = f.outbox[len(payload):]
	if len(f.outbox) == 0 {
		eom = true
	}

	resp := make([]byte, 0, headerLen+len(payload)+3)
	hdr := bulkHeader(msgRequestDevDepIn, req.bTag)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if eom {
		hdr[8] = 1
	}
	resp = append(resp, hdr[:]...)
	resp = append(resp, payload...)
	resp = padTo4(resp)
	if len(resp) > len(buf) {
		return 0, TransferError(ErrorOverflow)
	}
	return copy(buf, resp), nil
}

// fakeDevice is one simulated device on the fake bus.
type fakeDevice struct {
	devDesc *DeviceDesc
	strDesc map[int]string
	// tmc simulates the device's USBTMC function; nil for devices that
	// are not instruments.
	tmc *fakeTMC
	// removed simulates a disconnected device: opening fails and every
	// transfer on existing handles reports no device.
	removed bool

	activeConfig uint8
	alt          uint8
}

// fakeLibusb implements a fake libusb stack pretending to have the devices
// passed to newFakeLibusb attached to it. Device enumeration, claiming and
// configuration follow the device descriptors; bulk and control transfers
// are dispatched to the per-device fakeTMC engines.
type fakeLibusb struct {
	mu sync.Mutex
	// order keeps devices in a stable enumeration order.
	order []*libusbDevice
	// devices maps opaque device pointers to their fakes.
	devices map[*libusbDevice]*fakeDevice
	// handles maps open device handles to their devices.
	handles map[*libusbDevHandle]*libusbDevice
	// claims is a map of devices to their set of claimed interfaces.
	claims map[*libusbDevice]map[uint8]bool
}

func newFakeLibusb(devs ...*fakeDevice) *fakeLibusb {
	fl := &fakeLibusb{
		devices: make(map[*libusbDevice]*fakeDevice),
		handles: make(map[*libusbDevHandle]*libusbDevice),
		claims:  make(map[*libusbDevice]map[uint8]bool),
	}
	for _, fd := range devs {
		if fd.activeConfig == 0 && len(fd.devDesc.Configs) > 0 {
			fd.activeConfig = uint8(fd.devDesc.Configs[0].Number)
		}
		ptr := newDevicePointer()
		fl.order = append(fl.order, ptr)
		fl.devices[ptr] = fd
	}
	return fl
}

func (f *fakeLibusb) init() (*libusbContext, error) { return newContextPointer(), nil }
func (f *fakeLibusb) exit(*libusbContext)           {}
func (f *fakeLibusb) setDebug(*libusbContext, int)  {}
func (f *fakeLibusb) dereference(*libusbDevice)     {}

func (f *fakeLibusb) getDevices(*libusbContext) ([]*libusbDevice, error) {
	return append([]*libusbDevice(nil), f.order...), nil
}

func (f *fakeLibusb) getDeviceDesc(d *libusbDevice) (*DeviceDesc, error) {
	if dev, ok := f.devices[d]; ok {
		return dev.devDesc, nil
	}
	return nil, fmt.Errorf("invalid USB device %p", d)
}

func (f *fakeLibusb) open(d *libusbDevice) (*libusbDevHandle, error) {
	fd, ok := f.devices[d]
	if !ok {
		return nil, fmt.Errorf("invalid USB device %p", d)
	}
	if fd.removed {
		return nil, TransferError(ErrorNoDevice)
	}
	h := newDevHandlePointer()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[h] = d
	return h, nil
}

func (f *fakeLibusb) close(h *libusbDevHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, h)
}

func (f *fakeLibusb) fromHandle(h *libusbDevHandle) (*fakeDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.handles[h]
	if !ok {
		return nil, fmt.Errorf("invalid device handle %p", h)
	}
	fd := f.devices[d]
	if fd.removed {
		return nil, TransferError(ErrorNoDevice)
	}
	return fd, nil
}

func (f *fakeLibusb) getStringDesc(h *libusbDevHandle, index int) (string, error) {
	fd, err := f.fromHandle(h)
	if err != nil {
		return "", err
	}
	str, ok := fd.strDesc[index]
	if !ok {
		return "", fmt.Errorf("invalid string descriptor index %d", index)
	}
	return str, nil
}

func (f *fakeLibusb) getConfig(h *libusbDevHandle) (uint8, error) {
	fd, err := f.fromHandle(h)
	if err != nil {
		return 0, err
	}
	return fd.activeConfig, nil
}

func (f *fakeLibusb) setConfig(h *libusbDevHandle, cfg uint8) error {
	fd, err := f.fromHandle(h)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.claims[f.handles[h]]) != 0 {
		return TransferError(ErrorBusy)
	}
	for _, c := range fd.devDesc.Configs {
		if uint8(c.Number) == cfg {
			fd.activeConfig = cfg
			return nil
		}
	}
	return fmt.Errorf("device doesn't have config number %d", cfg)
}

func (f *fakeLibusb) setAutoDetach(*libusbDevHandle, int) error { return nil }

func (f *fakeLibusb) claim(h *libusbDevHandle, intf uint8) error {
	if _, err := f.fromHandle(h); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.claims[f.handles[h]]
	if c == nil {
		c = make(map[uint8]bool)
		f.claims[f.handles[h]] = c
	}
	if c[intf] {
		return TransferError(ErrorBusy)
	}
	c[intf] = true
	return nil
}

func (f *fakeLibusb) release(h *libusbDevHandle, intf uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.claims[f.handles[h]]
	if c == nil {
		return
	}
	delete(c, intf)
}

func (f *fakeLibusb) setAlt(h *libusbDevHandle, intf, alt uint8) error {
	fd, err := f.fromHandle(h)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.claims[f.handles[h]][intf] {
		return TransferError(ErrorNotFound)
	}
	fd.alt = alt
	return nil
}

func (f *fakeLibusb) clearHalt(h *libusbDevHandle, ep uint8) error {
	fd, err := f.fromHandle(h)
	if err != nil {
		return err
	}
	if fd.tmc != nil {
		fd.tmc.clearHalts = append(fd.tmc.clearHalts, ep)
	}
	return nil
}

func (f *fakeLibusb) bulk(h *libusbDevHandle, ep uint8, buf []byte, _ time.Duration) (int, error) {
	fd, err := f.fromHandle(h)
	if err != nil {
		return 0, err
	}
	if fd.tmc == nil {
		return 0, TransferError(ErrorNotSupported)
	}
	if fd.tmc.bulkErr != nil {
		err := fd.tmc.bulkErr
		fd.tmc.bulkErr = nil
		return 0, err
	}
	if ep&endpointDirectionMask != 0 {
		return fd.tmc.handleIn(buf)
	}
	return fd.tmc.handleOut(buf)
}

func (f *fakeLibusb) control(h *libusbDevHandle, _ time.Duration, rType, request uint8, _, _ uint16, data []byte) (int, error) {
	fd, err := f.fromHandle(h)
	if err != nil {
		return 0, err
	}
	if fd.tmc != nil && rType == ctrlClassInterfaceIn && request == reqGetCapabilities {
		if fd.tmc.capErr != nil {
			return 0, fd.tmc.capErr
		}
		return copy(data, fd.tmc.capabilities[:]), nil
	}
	return 0, TransferError(ErrorNotSupported)
}

// outMessages returns the DEV_DEP_MSG_OUT transfers recorded by the fake
// device, skipping read requests.
func (f *fakeTMC) outMessages() []outTransfer {
	var out []outTransfer
	for _, t := range f.transfers {
		if t.msgID == msgDevDepOut {
			out = append(out, t)
		}
	}
	return out
}

func newTestContext(t *testing.T, devs ...*fakeDevice) (*Context, *fakeLibusb) {
	t.Helper()
	fl := newFakeLibusb(devs...)
	ctx, err := newContextWithImpl(fl)
	if err != nil {
		t.Fatalf("newContextWithImpl: %v", err)
	}
	return ctx, fl
}
