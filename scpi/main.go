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

// scpi sends SCPI commands to a USBTMC instrument and prints the
// responses. The instrument is addressed either by a VISA resource string
// or by a VID:PID pair with an optional serial number.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/usblab/usbtmc"
)

var (
	visa   = flag.String("visa", "", "VISA resource string, e.g. USB0::10893::5634::MY57800123::INSTR. Exclusive with vidpid flag.")
	vidPID = flag.String("vidpid", "", "VID:PID of the instrument, two 16-bit hex numbers separated by colon, e.g. 2a8d:1602. Exclusive with visa flag.")
	serial = flag.String("serial", "", "Serial number, required when several instruments share a VID:PID.")
	debug  = flag.Int("debug", 0, "libusb debug level (0..3)")
)

func parseVIDPID(vidPid string) (usbtmc.ID, usbtmc.ID, error) {
	s := strings.Split(vidPid, ":")
	if len(s) != 2 {
		return 0, 0, fmt.Errorf("want VID:PID, two 16-bit hex numbers separated by colon, e.g. 2a8d:1602")
	}
	vid, err := strconv.ParseUint(s[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("VID must be a hexadecimal 16-bit number, e.g. 2a8d")
	}
	pid, err := strconv.ParseUint(s[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("PID must be a hexadecimal 16-bit number, e.g. 1602")
	}
	return usbtmc.ID(vid), usbtmc.ID(pid), nil
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatal("No commands given. Pass SCPI commands as arguments; commands ending in '?' are queries.")
	}

	var inst *usbtmc.TMCInstrument
	switch {
	case *visa == "" && *vidPID == "":
		log.Fatal("You need to address the instrument through a --visa flag or through a --vidpid flag.")
	case *visa != "" && *vidPID != "":
		log.Fatal("You can't use --visa together with --vidpid. Pick one.")
	case *visa != "":
		var err error
		inst, err = usbtmc.NewInstrumentFromVISA(*visa)
		if err != nil {
			log.Fatalf("Failed to open %q: %v", *visa, err)
		}
	default:
		vid, pid, err := parseVIDPID(*vidPID)
		if err != nil {
			log.Fatalf("Invalid value for --vidpid (%q): %v", *vidPID, err)
		}
		ctx := usbtmc.NewContext()
		defer ctx.Close()
		ctx.Debug(*debug)
		inst, err = usbtmc.NewInstrument(ctx, vid, pid, *serial)
		if err != nil {
			log.Fatalf("Failed to open %s:%s: %v", vid, pid, err)
		}
	}
	defer inst.Close()

	for _, cmd := range flag.Args() {
		if strings.HasSuffix(cmd, "?") {
			resp, err := inst.Query(cmd)
			if err != nil {
				log.Fatalf("%q: %v", cmd, err)
			}
			fmt.Print(resp)
			if !strings.HasSuffix(resp, "\n") {
				fmt.Println()
			}
		} else if err := inst.Write(cmd); err != nil {
			log.Fatalf("%q: %v", cmd, err)
		}
	}
}
