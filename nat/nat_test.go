package nat

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"", "upnp", "pmp"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("stun")
	require.Error(t, err)
}

func TestMapNone(t *testing.T) {
	m, err := Map(context.Background(), ModeNone, 9735)
	require.NoError(t, err)
	require.Nil(t, m)

	_, err = Map(context.Background(), Mode("bogus"), 9735)
	require.Error(t, err)
}

func TestIsPrivateIP(t *testing.T) {
	require.True(t, isPrivateIP(net.ParseIP("10.1.2.3")))
	require.True(t, isPrivateIP(net.ParseIP("172.16.0.1")))
	require.True(t, isPrivateIP(net.ParseIP("192.168.1.1")))
	require.False(t, isPrivateIP(net.ParseIP("172.32.0.1")))
	require.True(t, isPrivateIP(net.ParseIP("100.64.3.2")))
	require.False(t, isPrivateIP(net.ParseIP("100.128.0.1")))
	require.False(t, isPrivateIP(net.ParseIP("8.8.8.8")))
}
