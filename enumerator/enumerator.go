//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

// PortDetails contains detailed information about USB serial port.
// Use GetDetailedPortsList function to retrieve it.
type PortDetails struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string

	// Manufacturer and Product are OS-dependent strings that describe the
	// serial port, they may be not always available and they may be
	// different across OS.
	Manufacturer string
	Product      string
}

// GetDetailedPortsList retrieve ports details like USB VID/PID.
// On the platforms where the USB details are not available only the
// port names are filled in.
func GetDetailedPortsList() ([]*PortDetails, error) {
	return nativeGetDetailedPortsList()
}

// PortEnumerationError is the error type for serial ports enumeration
type PortEnumerationError struct {
	causedBy error
}

// Error returns the complete error code with details on the cause of the error
func (e PortEnumerationError) Error() string {
	reason := "Error while enumerating serial ports"
	if e.causedBy != nil {
		reason += ": " + e.causedBy.Error()
	}
	return reason
}

// Unwrap returns the cause of the error, if any.
func (e PortEnumerationError) Unwrap() error {
	return e.causedBy
}
