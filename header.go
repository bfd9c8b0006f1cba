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
)

// USBTMC bulk message identifiers (USBTMC spec table 2).
const (
	msgDevDepOut       = 1 // DEV_DEP_MSG_OUT: host-to-device message data
	msgRequestDevDepIn = 2 // REQUEST_DEV_DEP_MSG_IN: host requests device data
)

// headerLen is the fixed size of the USBTMC bulk header that precedes
// every bulk transfer in either direction.
const headerLen = 12

// bulkHeader fills in the common first four bytes of a USBTMC bulk header:
// message ID, bTag, one's-complement bTag, reserved zero.
func bulkHeader(msgID, bTag uint8) [headerLen]byte {
	var h [headerLen]byte
	h[0] = msgID
	h[1] = bTag
	h[2] = ^bTag
	return h
}

// devDepMsgOut builds the header of a device-dependent OUT transfer
// carrying size payload bytes. eom marks the final fragment of the
// logical message.
func devDepMsgOut(bTag uint8, size uint32, eom bool) [headerLen]byte {
	h := bulkHeader(msgDevDepOut, bTag)
	binary.LittleEndian.PutUint32(h[4:8], size)
	if eom {
		h[8] = 1
	}
	return h
}

// requestDevDepMsgIn builds the header of a read request asking the device
// for at most size bytes. If useTerm is set, the device is asked to end
// the transfer at the first occurrence of termChar.
func requestDevDepMsgIn(bTag uint8, size uint32, termChar byte, useTerm bool) [headerLen]byte {
	h := bulkHeader(msgRequestDevDepIn, bTag)
	binary.LittleEndian.PutUint32(h[4:8], size)
	if useTerm {
		h[8] = 1
		h[9] = termChar
	}
	return h
}

// parseDevDepMsgIn extracts the declared transfer size and the
// end-of-message flag from a device response header.
func parseDevDepMsgIn(buf []byte) (size uint32, eom bool, err error) {
	if len(buf) < headerLen {
		return 0, false, fmt.Errorf("usbtmc: short bulk-in response: %d bytes, want at least %d", len(buf), headerLen)
	}
	size = binary.LittleEndian.Uint32(buf[4:8])
	eom = buf[8]&1 != 0
	return size, eom, nil
}

// padTo4 appends zero bytes to buf until its length is a multiple of 4.
// Padding bytes are not counted in the declared transfer size.
func padTo4(buf []byte) []byte {
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}
