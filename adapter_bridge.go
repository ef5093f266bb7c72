//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build windows || ((linux || darwin || freebsd || netbsd) && serialbridge)

package serial

type platformAdapter = bridgeAdapter

const platformStrategy = "bridge"

func newPlatformAdapter(port *nativePort) (*platformAdapter, error) {
	return newBridgeAdapter(port)
}
