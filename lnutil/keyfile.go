package lnutil

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/howeyc/gopass"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Key files are nonce || secretbox(key).  The nonce doubles as the scrypt
// salt for the passphrase.
const (
	keyFileNonceLen = 24
	keyFileLen      = keyFileNonceLen + 32 + secretbox.Overhead
)

// scrypt cost.  Tests turn it down.
var KeyFileScryptN = 1 << 16

var ErrWrongPassphrase = errors.New("wrong passphrase for key file")

// ReadKeyFile loads the key at filename, asking for the passphrase on the
// terminal.  If there's no file yet a new key is made and saved.
func ReadKeyFile(filename string) (*[32]byte, error) {
	if _, err := os.Stat(filename); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		fmt.Printf("No key file found at %s, generating a new key.\n", filename)
		pass, err := askNewPassphrase()
		if err != nil {
			return nil, err
		}
		return NewKeyFile(filename, pass)
	}

	fmt.Printf("passphrase: ")
	pass, err := gopass.GetPasswdMasked()
	if err != nil {
		return nil, err
	}
	return LoadKeyFromFileArg(filename, pass)
}

func askNewPassphrase() ([]byte, error) {
	for {
		fmt.Printf("type passphrase for the new key (empty for none): ")
		pass, err := gopass.GetPasswdMasked()
		if err != nil {
			return nil, err
		}
		fmt.Printf("repeat passphrase: ")
		again, err := gopass.GetPasswdMasked()
		if err != nil {
			return nil, err
		}
		if bytes.Equal(pass, again) {
			return pass, nil
		}
		fmt.Printf("passphrases don't match, try again\n")
	}
}

// NewKeyFile makes a random key and saves it under pass.
func NewKeyFile(filename string, pass []byte) (*[32]byte, error) {
	key := new([32]byte)
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	if err := SaveKeyToFileArg(filename, pass, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SaveKeyToFileArg encrypts key with pass and writes it out.  It won't
// overwrite an existing file.
func SaveKeyToFileArg(filename string, pass []byte, key *[32]byte) error {
	var nonce [keyFileNonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}

	box, err := passKey(pass, nonce[:])
	if err != nil {
		return err
	}

	out := secretbox.Seal(nonce[:], key[:], &nonce, box)

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	_, err = f.Write(out)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadKeyFromFileArg decrypts the key file with pass.
func LoadKeyFromFileArg(filename string, pass []byte) (*[32]byte, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(raw) != keyFileLen {
		return nil, fmt.Errorf("key file %s is %d bytes, expected %d", filename, len(raw), keyFileLen)
	}

	var nonce [keyFileNonceLen]byte
	copy(nonce[:], raw[:keyFileNonceLen])

	box, err := passKey(pass, nonce[:])
	if err != nil {
		return nil, err
	}

	plain, ok := secretbox.Open(nil, raw[keyFileNonceLen:], &nonce, box)
	if !ok {
		return nil, ErrWrongPassphrase
	}

	key := new([32]byte)
	copy(key[:], plain)
	return key, nil
}

func passKey(pass, salt []byte) (*[32]byte, error) {
	dk, err := scrypt.Key(pass, salt, KeyFileScryptN, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	k := new([32]byte)
	copy(k[:], dk)
	return k, nil
}
