package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptAmount(t *testing.T) {
	a, err := optAmount("0")
	require.NoError(t, err)
	require.Nil(t, a)

	a, err = optAmount("2500")
	require.NoError(t, err)
	require.Equal(t, uint64(2500), *a)

	a, err = optAmount("0.001BTC")
	require.NoError(t, err)
	require.Equal(t, uint64(100000000), *a)

	_, err = optAmount("lots")
	require.Error(t, err)
	_, err = optAmount("-1btc")
	require.Error(t, err)
}

func TestShellparseLocal(t *testing.T) {
	lc := &hodlAfClient{}

	require.ErrorIs(t, lc.Shellparse([]string{"exit"}), errExit)
	require.ErrorIs(t, lc.Shellparse([]string{"quit"}), errExit)
	require.NoError(t, lc.Shellparse([]string{"nosuchcommand"}))
	require.NoError(t, lc.Shellparse([]string{"help"}))
	require.NoError(t, lc.Shellparse([]string{"help", "settle"}))
	require.NoError(t, lc.Shellparse([]string{"settle", "-h"}))
	require.Error(t, lc.Shellparse([]string{"help", "bogus"}))

	// argument checks fire before any call to the node
	require.Error(t, lc.Shellparse([]string{"settle", "abc"}))
	require.Error(t, lc.Shellparse([]string{"pay"}))
	require.Error(t, lc.Shellparse([]string{"addhodl", "lots"}))
}

func TestQR(t *testing.T) {
	lc := &hodlAfClient{}
	require.Error(t, lc.QR(nil))

	file := filepath.Join(t.TempDir(), "req.png")
	require.NoError(t, lc.QR([]string{"lnbcrt10n1qqqqqq", file}))
	require.FileExists(t, file)

	out := halfBlocks([][]bool{{true, false}, {true, true}, {false, true}})
	require.Equal(t, " ▀\n█▄\n", out)
}

func TestEveryCommandHasHelp(t *testing.T) {
	for name, c := range commands {
		require.NotNil(t, c.help, name)
		require.NotEmpty(t, c.help.Format, name)
		require.NotNil(t, c.run, name)
	}
}

func TestConfirm(t *testing.T) {
	lc := &hodlAfClient{}

	// Saying no never reaches the node.
	require.NoError(t, lc.Shellparse([]string{"stop", "n"}))
	require.NoError(t, lc.Shellparse([]string{"cancel", "abc", "nope"}))
	require.Error(t, lc.Shellparse([]string{"stop", "maybe"}))

	// Nobody to ask.
	_, err := lc.confirm("stop hodld?", nil)
	require.Error(t, err)

	var asked []string
	answers := []string{"YES", ""}
	lc.ask = func(q string) (string, error) {
		asked = append(asked, q)
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}
	ok, err := lc.confirm("stop hodld?", nil)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = lc.confirm("cancel abc?", nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{"stop hodld? [y/n] ", "cancel abc? [y/n] "}, asked)
}
