//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// portlist is a tool to list all the available serial ports.
// Just run it and it will produce an output like:
//
//	$ go run ./portlist -probe
//	Port: /dev/ttyACM0
//	   USB ID     2341:8053
//	   USB serial FB7B6060504B5952302E314AFF08191A
//	   Mode       9600 8N1
//	   Modem      CTS=false DSR=true RI=false DCD=false
//
// With -probe every port is opened at 9600_N81 and the configuration read
// back from the driver is printed. Ports that can't be opened are skipped.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/abakum/go-serial-async"
	"github.com/abakum/go-serial-async/enumerator"
)

var parityNames = map[serial.Parity]string{
	serial.NoParity:    "N",
	serial.OddParity:   "O",
	serial.EvenParity:  "E",
	serial.MarkParity:  "M",
	serial.SpaceParity: "S",
}

var stopBitsNames = map[serial.StopBits]string{
	serial.OneStopBit:           "1",
	serial.OnePointFiveStopBits: "1.5",
	serial.TwoStopBits:          "2",
}

func main() {
	probeFlag := flag.Bool("probe", false, "open each port and print its configuration")
	flag.Parse()

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Fatal(err)
	}
	if len(ports) == 0 {
		return
	}
	for _, port := range ports {
		fmt.Printf("Port: %s\n", port.Name)
		if port.IsUSB {
			fmt.Printf("   USB ID     %s:%s\n", port.VID, port.PID)
			fmt.Printf("   USB serial %s\n", port.SerialNumber)
		}
		if *probeFlag {
			if err := probe(port.Name); err != nil {
				log.Printf("%s: %v", port.Name, err)
			}
		}
	}
}

func probe(name string) error {
	port, err := serial.Open(name, nil)
	if err != nil {
		return err
	}
	defer port.Close()

	baud, err := port.BaudRate()
	if err != nil {
		return err
	}
	bits, err := port.DataBits()
	if err != nil {
		return err
	}
	parity, err := port.Parity()
	if err != nil {
		return err
	}
	stop, err := port.StopBits()
	if err != nil {
		return err
	}
	fmt.Printf("   Mode       %d %d%s%s\n", baud, bits, parityNames[parity], stopBitsNames[stop])

	status, err := port.GetModemStatusBits()
	if err != nil {
		return err
	}
	fmt.Printf("   Modem      CTS=%v DSR=%v RI=%v DCD=%v\n", status.CTS, status.DSR, status.RI, status.DCD)
	return nil
}
