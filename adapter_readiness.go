//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build (linux || darwin || freebsd || netbsd) && !serialbridge

package serial

type platformAdapter = readinessAdapter

const platformStrategy = "readiness"

func newPlatformAdapter(port *nativePort) (*platformAdapter, error) {
	return newReadinessAdapter(port)
}
