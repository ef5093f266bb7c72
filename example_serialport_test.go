//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial_test

import (
	"fmt"
	"log"

	"github.com/abakum/go-serial-async"
)

func ExampleStream_SetMode() {
	port, err := serial.Open("/dev/ttyACM0", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()

	mode := &serial.Mode{BaudRate: 115200}
	if err := serial.ModeFromString("7E1", mode); err != nil {
		log.Fatal(err)
	}
	if err := port.SetMode(mode); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Port set to 115200 7E1")
}
