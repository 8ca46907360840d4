package lnutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func init() {
	KeyFileScryptN = 1 << 4
}

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privkey.hex")

	key, err := NewKeyFile(path, []byte("hunter2"))
	require.NoError(t, err)

	again, err := LoadKeyFromFileArg(path, []byte("hunter2"))
	require.NoError(t, err)
	require.Equal(t, *key, *again)

	_, err = LoadKeyFromFileArg(path, []byte("hunter3"))
	require.ErrorIs(t, err, ErrWrongPassphrase)

	// No clobbering an existing key.
	_, err = NewKeyFile(path, nil)
	require.True(t, os.IsExist(err))
}

func TestKeyFileEmptyPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privkey.hex")
	key, err := NewKeyFile(path, nil)
	require.NoError(t, err)

	again, err := LoadKeyFromFileArg(path, []byte{})
	require.NoError(t, err)
	require.Equal(t, *key, *again)
}

func TestKeyFileTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privkey.hex")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))
	_, err := LoadKeyFromFileArg(path, nil)
	require.Error(t, err)
}

func TestSignVerifyMessage(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	msg := []byte("hello from the node")
	sig, err := SignMessage(priv, msg)
	require.NoError(t, err)

	require.True(t, VerifyMessage(priv.PubKey(), msg, sig))
	require.False(t, VerifyMessage(other.PubKey(), msg, sig))
	require.False(t, VerifyMessage(priv.PubKey(), []byte("tampered"), sig))
	require.False(t, VerifyMessage(priv.PubKey(), msg, "not zbase32!"))

	pub, err := RecoverMessageSigner(msg, sig)
	require.NoError(t, err)
	require.True(t, pub.IsEqual(priv.PubKey()))
}

func TestColors(t *testing.T) {
	color.NoColor = true
	require.Equal(t, "1234567", MsatColor(1234567))
	require.Equal(t, "999", MsatColor(999))
	require.Equal(t, "5000", MsatColor(5000))
	require.True(t, strings.Contains(ReqColor("hash"), "<hash>"))
	require.Equal(t, " [<a> [<b>]]", OptColor("a", "b"))
	require.Equal(t, "Held", StateColor("Held"))
}
