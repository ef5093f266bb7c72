//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	"regexp"
	"strings"

	"github.com/abakum/go-serial-async"
	"golang.org/x/sys/windows/registry"
)

const enumKey = `SYSTEM\CurrentControlSet\Enum`

// buses whose instances may expose a COM port
var usbBuses = []string{"USB", "FTDIBUS"}

var deviceIDRegexp = regexp.MustCompile(`^([A-Z0-9_]+)\\VID_([0-9A-F]{4})[&+]PID_([0-9A-F]{4})(?:[&+]MI_[0-9A-F]{2})?(?:\+([^\\]*))?\\(.*)$`)

func nativeGetDetailedPortsList() ([]*PortDetails, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &PortEnumerationError{causedBy: err}
	}
	usb := usbPortsByName()

	var res []*PortDetails
	for _, port := range ports {
		if details, ok := usb[port]; ok {
			res = append(res, details)
			continue
		}
		res = append(res, &PortDetails{Name: port})
	}
	return res, nil
}

// usbPortsByName walks the device enumeration tree looking for instances
// with a PortName parameter. Unreadable keys are skipped.
func usbPortsByName() map[string]*PortDetails {
	res := map[string]*PortDetails{}
	for _, bus := range usbBuses {
		busKey, err := registry.OpenKey(registry.LOCAL_MACHINE, enumKey+`\`+bus, registry.ENUMERATE_SUB_KEYS)
		if err != nil {
			continue
		}
		hwids, _ := busKey.ReadSubKeyNames(-1)
		busKey.Close()
		for _, hwid := range hwids {
			for _, details := range readInstances(bus + `\` + hwid) {
				res[details.Name] = details
			}
		}
	}
	return res
}

func readInstances(hwidPath string) []*PortDetails {
	hwidKey, err := registry.OpenKey(registry.LOCAL_MACHINE, enumKey+`\`+hwidPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil
	}
	instances, _ := hwidKey.ReadSubKeyNames(-1)
	hwidKey.Close()

	var res []*PortDetails
	for _, instance := range instances {
		deviceID := hwidPath + `\` + instance
		name, ok := readString(deviceID+`\Device Parameters`, "PortName")
		if !ok {
			continue
		}
		details := &PortDetails{Name: name}
		parseDeviceID(deviceID, details)
		details.Manufacturer, _ = readString(deviceID, "Mfg")
		details.Product, _ = readString(deviceID, "FriendlyName")
		res = append(res, details)
	}
	return res
}

func readString(path, value string) (string, bool) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, enumKey+`\`+path, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()
	s, _, err := k.GetStringValue(value)
	if err != nil {
		return "", false
	}
	// driver provided strings may be indirect: "@oem.inf,%desc%;Text"
	if i := strings.LastIndex(s, ";"); i >= 0 && strings.HasPrefix(s, "@") {
		s = s[i+1:]
	}
	return s, true
}

// parseDeviceID extracts VID, PID and serial number from a device instance
// ID such as USB\VID_2341&PID_0043\75330303035351300230.
func parseDeviceID(deviceID string, details *PortDetails) {
	data := deviceIDRegexp.FindStringSubmatch(strings.ToUpper(deviceID))
	if data == nil {
		return
	}
	details.IsUSB = true
	details.VID = data[2]
	details.PID = data[3]
	if data[4] != "" {
		// FTDIBUS\VID_xxxx+PID_yyyy+SERIAL\0000
		details.SerialNumber = data[4]
		return
	}
	// instances generated by Windows contain '&', real serial numbers don't
	if !strings.Contains(data[5], "&") {
		details.SerialNumber = data[5]
	}
}
