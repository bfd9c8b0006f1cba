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
	"unicode/utf8"
)

// Encoding selects the text encoding used by string operations of an
// Instrument.
type Encoding int

const (
	// EncodingASCII is the only encoding USBTMC instruments speak; SCPI
	// and IEEE-488.2 mandate 7-bit ASCII command strings.
	EncodingASCII Encoding = iota
)

func encodeString(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingASCII:
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return nil, fmt.Errorf("%w: byte 0x%02x at offset %d", ErrCannotEncode, s[i], i)
			}
		}
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %d", ErrCannotEncode, enc)
	}
}

func decodeBytes(b []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingASCII:
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: unknown encoding %d", ErrCannotEncode, enc)
	}
}

// Instrument is the convenience surface for talking to a test instrument.
// The USBTMC implementation is TMCInstrument; other instrument transports
// can be modeled as sibling implementations.
type Instrument interface {
	// Write sends a command string, followed by the instrument terminator.
	Write(cmd string) error
	// WriteBytes sends raw payload bytes as one message, with no
	// terminator appended.
	WriteBytes(p []byte) (int, error)
	// Read receives one message and decodes it as a string.
	Read() (string, error)
	// ReadBytes receives one raw message, bounded by maxLen when positive.
	ReadBytes(maxLen int) ([]byte, error)
	// Query writes a command and reads the response.
	Query(cmd string) (string, error)
	// Reconnect drops and re-establishes the device connection.
	Reconnect() error
	// Close releases the instrument and all USB resources derived from it.
	Close() error
}

// TMCInstrument is the USBTMC implementation of Instrument.
type TMCInstrument struct {
	ctx     *Context
	ownsCtx bool
	dev     *Device
	session *Session

	// Terminator is appended to every written command and, when the
	// device supports it, ends terminator-gated reads. SCPI instruments
	// use "\n".
	Terminator string
	// StripTerminator drops the trailing terminator byte from read
	// results.
	StripTerminator bool
	// Encoding applies to all string operations.
	Encoding Encoding
}

var _ Instrument = (*TMCInstrument)(nil)

// NewInstrument resolves the device with the given identity on ctx,
// negotiates its USBTMC interface and returns a ready instrument. An empty
// serial is allowed when exactly one device matches the vendor/product
// pair.
func NewInstrument(ctx *Context, vid, pid ID, serial string) (*TMCInstrument, error) {
	return newInstrument(ctx, false, vid, pid, serial)
}

// NewInstrumentFromVISA opens an instrument addressed by a VISA resource
// string such as "USB0::10893::5634::MY12345678::INSTR". The returned
// instrument owns its USB context and releases it on Close.
func NewInstrumentFromVISA(resource string) (*TMCInstrument, error) {
	vid, pid, serial, err := ParseVISA(resource)
	if err != nil {
		return nil, err
	}
	ctx := NewContext()
	inst, err := newInstrument(ctx, true, vid, pid, serial)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	return inst, nil
}

func newInstrument(ctx *Context, ownsCtx bool, vid, pid ID, serial string) (*TMCInstrument, error) {
	dev, err := ctx.ResolveDevice(vid, pid, serial)
	if err != nil {
		return nil, err
	}
	s, err := NewSession(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return &TMCInstrument{
		ctx:        ctx,
		ownsCtx:    ownsCtx,
		dev:        dev,
		session:    s,
		Terminator: "\n",
		Encoding:   EncodingASCII,
	}, nil
}

// Session exposes the underlying framing session for callers that need
// per-transfer control (timeouts, chunk size, raw terminator reads).
func (i *TMCInstrument) Session() *Session {
	return i.session
}

// Write sends cmd followed by the instrument terminator.
func (i *TMCInstrument) Write(cmd string) error {
	b, err := encodeString(cmd, i.Encoding)
	if err != nil {
		return err
	}
	term, err := encodeString(i.Terminator, i.Encoding)
	if err != nil {
		return err
	}
	_, err = i.session.WriteBytes(b, term)
	return err
}

// WriteBytes sends raw payload bytes with no terminator appended.
func (i *TMCInstrument) WriteBytes(p []byte) (int, error) {
	return i.session.WriteBytes(p, nil)
}

// Read receives one message from the instrument and decodes it. When the
// device supports terminator-gated reads and a terminator is configured,
// the read ends at the terminator; otherwise it ends at the device's
// end-of-message flag.
func (i *TMCInstrument) Read() (string, error) {
	b, err := i.readMessage(0)
	if err != nil {
		return "", err
	}
	return decodeBytes(b, i.Encoding)
}

// ReadBytes receives one raw message, bounded by maxLen when positive.
func (i *TMCInstrument) ReadBytes(maxLen int) ([]byte, error) {
	return i.readMessage(maxLen)
}

func (i *TMCInstrument) readMessage(maxLen int) ([]byte, error) {
	if i.session.TerminatorSupported() && len(i.Terminator) == 1 {
		return i.session.ReadBytes(maxLen, []byte(i.Terminator), i.StripTerminator)
	}
	return i.session.Read(maxLen)
}

// Query writes cmd and reads the instrument's response.
func (i *TMCInstrument) Query(cmd string) (string, error) {
	if err := i.Write(cmd); err != nil {
		return "", err
	}
	return i.Read()
}

// Reconnect tears down the negotiated session, reopens the device and
// negotiates again. The device identity is preserved; use it after the
// instrument was unplugged and plugged back in, or after Close.
func (i *TMCInstrument) Reconnect() error {
	if i.session != nil {
		if err := i.session.Close(); err != nil {
			return err
		}
		i.session = nil
	}
	if err := i.dev.Close(); err != nil {
		return err
	}
	if err := i.dev.Reopen(); err != nil {
		return err
	}
	s, err := NewSession(i.dev)
	if err != nil {
		return err
	}
	i.session = s
	return nil
}

// Close releases the session, the device, and, for VISA-constructed
// instruments, the owned USB context. Resources are released in the
// reverse order of their acquisition.
func (i *TMCInstrument) Close() error {
	if i.session != nil {
		if err := i.session.Close(); err != nil {
			return err
		}
		i.session = nil
	}
	if i.dev != nil {
		if err := i.dev.Close(); err != nil {
			return err
		}
	}
	if i.ownsCtx && i.ctx != nil {
		return i.ctx.Close()
	}
	return nil
}

// ValidASCII reports whether s contains only 7-bit ASCII. Exposed for
// callers that validate commands before sending.
func ValidASCII(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	_, err := encodeString(s, EncodingASCII)
	return err == nil
}
