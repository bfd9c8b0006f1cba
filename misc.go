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

// BCD is a binary-coded decimal version number.
type BCD uint16

// Version returns a BCD version number from its major/minor components.
func Version(major, minor uint8) BCD {
	return BCD(major)<<8 | BCD(minor)
}

// Major is the major number of the BCD.
func (d BCD) Major() uint8 {
	return uint8(d >> 8)
}

// Minor is the minor number of the BCD.
func (d BCD) Minor() uint8 {
	return uint8(d & 0xff)
}

// String returns a dotted representation of the BCD (major.minor).
func (d BCD) String() string {
	return fmt.Sprintf("%x.%02x", d.Major(), d.Minor())
}

// ID is a vendor or product identifier, as found in a device descriptor
// and in VISA resource strings.
type ID uint16

// String returns a hexadecimal ID.
func (id ID) String() string {
	return fmt.Sprintf("%04x", int(id))
}

// Milliamperes is a current rating expressed in milliamperes.
type Milliamperes uint
