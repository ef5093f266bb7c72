//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNetBSDBaudrate(t *testing.T) {
	settings := &unix.Termios{}
	special, err := setTermSettingsBaudrate(250000, settings)
	require.NoError(t, err)
	require.False(t, special)
	require.Equal(t, int32(250000), settings.Ispeed)
	require.Equal(t, int32(250000), settings.Ospeed)

	_, err = setTermSettingsBaudrate(10, settings)
	requireCode(t, err, InvalidSpeed)
	require.Equal(t, int32(250000), settings.Ospeed)
}

func TestNetBSDPortFilter(t *testing.T) {
	for _, name := range []string{"tty00", "dty01", "ttyU0", "ttyC1", "ttya"} {
		require.True(t, osPortFilter.MatchString(name), name)
	}
	for _, name := range []string{"ttyp0", "tty", "console", "ttyU"} {
		require.False(t, osPortFilter.MatchString(name), name)
	}
}
