//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/abakum/go-serial-async"
)

const sysfsTTY = "/sys/class/tty"

func nativeGetDetailedPortsList() ([]*PortDetails, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &PortEnumerationError{causedBy: err}
	}

	var res []*PortDetails
	for _, port := range ports {
		details := &PortDetails{Name: port}
		readUSBDetails(sysfsTTY, details)
		res = append(res, details)
	}
	return res, nil
}

// readUSBDetails fills the USB fields of details when the tty is backed by
// a USB device. The interface directory linked from the tty holds no
// idVendor file, so the parents are searched upward.
func readUSBDetails(root string, details *PortDetails) {
	dev, err := filepath.EvalSymlinks(filepath.Join(root, filepath.Base(details.Name), "device"))
	if err != nil {
		return
	}
	for dir := dev; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		vid, ok := readAttr(dir, "idVendor")
		if !ok {
			continue
		}
		details.IsUSB = true
		details.VID = strings.ToUpper(vid)
		details.PID, _ = readAttr(dir, "idProduct")
		details.PID = strings.ToUpper(details.PID)
		details.SerialNumber, _ = readAttr(dir, "serial")
		details.Manufacturer, _ = readAttr(dir, "manufacturer")
		details.Product, _ = readAttr(dir, "product")
		return
	}
}

func readAttr(dir, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
