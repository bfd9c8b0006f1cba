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
	"io"
	"log"
	"os"
)

// debug is the package's internal logger. It is silent unless enabled
// through Context.Debug.
var debug = log.New(io.Discard, "usbtmc: ", log.LstdFlags|log.Lshortfile)

func setDebug(on bool) {
	if on {
		debug.SetOutput(os.Stderr)
	} else {
		debug.SetOutput(io.Discard)
	}
}
