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

// lstmc lists the USB devices attached to the system and marks the ones
// that expose a USBTMC interface, together with the bulk endpoints a
// session would use.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/usblab/usbtmc"
)

var (
	debug   = flag.Int("debug", 0, "libusb debug level (0..3)")
	tmcOnly = flag.Bool("tmc", false, "only list devices with a USBTMC interface")
)

func main() {
	flag.Parse()

	ctx := usbtmc.NewContext()
	defer ctx.Close()
	ctx.Debug(*debug)

	devs, err := ctx.OpenDevices(func(desc *usbtmc.DeviceDesc) bool {
		if !*tmcOnly {
			return true
		}
		for _, cfg := range desc.Configs {
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					if alt.IsTMC() {
						return true
					}
				}
			}
		}
		return false
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil {
		log.Printf("Warning: OpenDevices: %s.", err)
	}

	for _, dev := range devs {
		fmt.Printf("%03d:%03d %s\n", dev.Desc.Bus, dev.Desc.Address, dev.Desc)
		if mfg, err := dev.Manufacturer(); err == nil {
			prod, _ := dev.Product()
			sn, _ := dev.SerialNumber()
			fmt.Printf("  %s %s serial=%s\n", mfg, prod, sn)
		}
		for _, cfg := range dev.Desc.Configs {
			fmt.Printf("  %s:\n", cfg)
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					marker := ""
					if alt.IsTMC() {
						marker = "  [USBTMC]"
					}
					fmt.Printf("    %s%s\n", alt, marker)
					for _, end := range alt.Endpoints {
						fmt.Printf("      %s\n", end)
					}
				}
			}
		}
	}
}
