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
	"strconv"
	"strings"
)

// ParseVISA extracts the device identity from a VISA resource string of
// the form
//
//	USB[board]::<vendorID>::<productID>::<serialNumber>[::...][::INSTR]
//
// Vendor and product IDs are accepted in decimal or 0x-prefixed
// hexadecimal. At least four ::-delimited sections are required.
func ParseVISA(resource string) (vid, pid ID, serial string, err error) {
	fields := strings.Split(resource, "::")
	if len(fields) < 4 {
		return 0, 0, "", fmt.Errorf("%w: %q has %d sections, want at least 4", ErrInvalidVISA, resource, len(fields))
	}
	scheme := strings.ToUpper(fields[0])
	if !strings.HasPrefix(scheme, "USB") {
		return 0, 0, "", fmt.Errorf("%w: %q does not address a USB resource", ErrInvalidVISA, resource)
	}

	v, err := parseVISAID(fields[1])
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: bad vendor ID %q", ErrInvalidVISA, fields[1])
	}
	p, err := parseVISAID(fields[2])
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: bad product ID %q", ErrInvalidVISA, fields[2])
	}
	return v, p, fields[3], nil
}

func parseVISAID(s string) (ID, error) {
	// base 0 accepts both "10893" and "0x2A8D".
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}
