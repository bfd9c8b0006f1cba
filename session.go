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
	"io"
	"time"
)

const (
	// DefaultTimeout is the default per-transfer timeout of a Session.
	DefaultTimeout = 10 * time.Second
	// DefaultChunkSize is the default maximum payload carried in a single
	// bulk transfer. This is a practical transfer-size limit, not a
	// protocol one; any positive value yields the same reassembled
	// messages.
	DefaultChunkSize = 1024 * 1024

	// GET_CAPABILITIES class request (USBTMC spec table 15).
	reqGetCapabilities = 7
	// bmRequestType for class-scoped, interface-recipient, device-to-host
	// control transfers.
	ctrlClassInterfaceIn = 0xa1
	// Capability response layout: 24 bytes, interface capabilities at
	// offset 5, bit 0 set when the device can end reads at a terminator.
	capabilitiesLen  = 24
	capIndexTermChar = 5

	// Extra room in receive buffers for the response header alignment.
	bulkInSlack = 3
)

// Session is a negotiated USBTMC communication channel to one device: the
// claimed configuration and interface, the bulk endpoint pair, and the
// rolling message tag used to correlate transfers with responses.
//
// A Session is not safe for concurrent use; callers that share one Session
// across goroutines must serialize access themselves. Independent devices
// get independent Sessions.
type Session struct {
	dev  *Device
	cfg  *Config
	intf *Interface
	in   *InEndpoint
	out  *OutEndpoint

	// bTag is the rolling message tag, always in [1,255]. Its
	// one's-complement partner byte accompanies it in every header; the
	// two always sum to 255. The tag advances only on confirmed transfer
	// completion and wraps 255 -> 1, never reaching 0.
	bTag uint8

	// termCharSupported caches the device's GET_CAPABILITIES answer.
	termCharSupported bool

	// Timeout applies to every bulk transfer issued by the Session.
	Timeout time.Duration
	// ChunkSize limits the payload bytes of one bulk transfer fragment.
	ChunkSize int
}

// NewSession negotiates the USBTMC interface of an open device and returns
// a ready-to-use Session. The device capability for terminator-gated reads
// is probed once; a failing probe is not an error and merely disables
// terminator support.
func NewSession(dev *Device) (*Session, error) {
	cfg, intf, in, out, err := negotiate(dev)
	if err != nil {
		return nil, err
	}
	s := &Session{
		dev:       dev,
		cfg:       cfg,
		intf:      intf,
		in:        in,
		out:       out,
		bTag:      1,
		Timeout:   DefaultTimeout,
		ChunkSize: DefaultChunkSize,
	}
	s.queryCapabilities()
	return s, nil
}

// advanceTag moves the message tag forward after a confirmed transfer,
// wrapping 255 to 1. Tag 0 is reserved and never used.
func (s *Session) advanceTag() {
	s.bTag++
	if s.bTag == 0 {
		s.bTag = 1
	}
}

// queryCapabilities issues the GET_CAPABILITIES class request and records
// whether the device supports terminator-gated reads. Capability discovery
// is advisory: every failure is swallowed and leaves the capability at its
// fail-safe "unsupported" default.
func (s *Session) queryCapabilities() {
	buf := make([]byte, capabilitiesLen)
	n, err := s.dev.Control(ctrlClassInterfaceIn, reqGetCapabilities, 0, uint16(s.intf.Setting.Number), buf)
	if err != nil || n <= capIndexTermChar {
		debug.Printf("GET_CAPABILITIES on %s failed (n=%d, err=%v), assuming no terminator support", s.intf, n, err)
		s.termCharSupported = false
		return
	}
	s.termCharSupported = buf[capIndexTermChar]&1 != 0
}

// TerminatorSupported reports whether the device declared support for
// ending reads at a terminator character.
func (s *Session) TerminatorSupported() bool {
	return s.termCharSupported
}

func (s *Session) chunkSize() int {
	if s.ChunkSize > 0 {
		return s.ChunkSize
	}
	return DefaultChunkSize
}

// WriteBytes sends payload, followed by the optional terminator bytes, as
// one logical USBTMC message. The message is fragmented into bulk
// transfers of at most ChunkSize payload bytes; only the final fragment
// carries the end-of-message flag. It returns the number of payload bytes
// the device accepted.
//
// The device may accept fewer bytes than offered in any single transfer;
// the write cursor advances by the confirmed count only, so a partially
// accepted fragment is retransmitted from the first unconfirmed byte.
func (s *Session) WriteBytes(payload, terminator []byte) (int, error) {
	msg := payload
	if len(terminator) > 0 {
		msg = make([]byte, 0, len(payload)+len(terminator))
		msg = append(msg, payload...)
		msg = append(msg, terminator...)
	}

	// A halted OUT endpoint would reject the whole message; clear the
	// condition once up front.
	if err := s.out.ClearHalt(); err != nil {
		return 0, err
	}

	chunk := s.chunkSize()
	var total int
	for cursor := 0; ; {
		n := len(msg) - cursor
		if n > chunk {
			n = chunk
		}
		eom := cursor+n == len(msg)

		hdr := devDepMsgOut(s.bTag, uint32(n), eom)
		buf := make([]byte, 0, headerLen+n+3)
		buf = append(buf, hdr[:]...)
		buf = append(buf, msg[cursor:cursor+n]...)
		buf = padTo4(buf)

		sent, err := s.out.Write(buf, s.Timeout)
		if err != nil {
			return total, err
		}
		s.advanceTag()

		confirmed := sent - headerLen
		if confirmed > n {
			confirmed = n
		}
		if confirmed < 0 {
			confirmed = 0
		}
		if n > 0 && confirmed == 0 {
			return total, io.ErrShortWrite
		}
		cursor += confirmed
		total += confirmed
		if cursor == len(msg) {
			break
		}
	}
	if total > len(payload) {
		// Terminator bytes are transport overhead, not caller payload.
		total = len(payload)
	}
	return total, nil
}

// Read receives one logical message from the device, issuing read requests
// of at most ChunkSize bytes until the device signals end of message.
// A positive maxLen bounds the total number of bytes read; zero means
// unbounded (the loop runs until end of message).
func (s *Session) Read(maxLen int) ([]byte, error) {
	return s.receive(false, 0, maxLen)
}

// ReadBytes receives one logical message, asking the device to end the
// transfer at the first occurrence of the terminator. The terminator must
// be exactly one byte and the device must have declared terminator support
// in its capabilities. If strip is set, a trailing terminator byte is
// removed from the result.
func (s *Session) ReadBytes(maxLen int, terminator []byte, strip bool) ([]byte, error) {
	if !s.termCharSupported {
		return nil, ErrTerminatorNotSupported
	}
	if len(terminator) != 1 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidTerminator, len(terminator))
	}
	got, err := s.receive(true, terminator[0], maxLen)
	if err != nil {
		return got, err
	}
	if strip && len(got) > 0 && got[len(got)-1] == terminator[0] {
		got = got[:len(got)-1]
	}
	return got, nil
}

// receive runs the chunked read-request/response cycle until the device
// reports end of message (or maxLen bytes have accumulated, when given).
func (s *Session) receive(useTerm bool, termChar byte, maxLen int) ([]byte, error) {
	chunk := s.chunkSize()
	var result []byte
	for {
		req := chunk
		if maxLen > 0 {
			if rem := maxLen - len(result); rem < req {
				req = rem
			}
		}

		if err := s.in.ClearHalt(); err != nil {
			return result, err
		}
		hdr := requestDevDepMsgIn(s.bTag, uint32(req), termChar, useTerm)
		if _, err := s.out.Write(hdr[:], s.Timeout); err != nil {
			return result, err
		}

		buf := make([]byte, req+headerLen+bulkInSlack)
		n, err := s.in.Read(buf, s.Timeout)
		if err != nil {
			return result, err
		}
		s.advanceTag()

		declared, eom, err := parseDevDepMsgIn(buf[:n])
		if err != nil {
			return result, err
		}
		payload := buf[headerLen:n]
		if uint32(len(payload)) > declared {
			// Alignment padding past the declared size is dropped.
			payload = payload[:declared]
		}
		result = append(result, payload...)

		if maxLen > 0 && len(result) >= maxLen {
			return result, nil
		}
		// The device may declare more bytes than this response carried;
		// the excess stays available for the next request. Only a fully
		// consumed transfer with the end-of-message flag ends the loop.
		if eom && uint32(len(payload)) >= declared {
			return result, nil
		}
	}
}

// Close releases the Session's claimed resources in the reverse order of
// their acquisition: the interface claim first, then the configuration.
// The device itself stays open and is closed by its owner.
func (s *Session) Close() error {
	if s.intf == nil {
		return nil
	}
	s.intf.Close()
	s.intf = nil
	err := s.cfg.Close()
	s.cfg = nil
	return err
}
