package lnutil

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/tv42/zbase32"
)

// signedMsgPrefix is prepended before hashing, same as lnd's signmessage.
var signedMsgPrefix = []byte("Lightning Signed Message:")

var ErrBadMessageSignature = errors.New("bad message signature")

func signedMsgHash(msg []byte) []byte {
	return chainhash.DoubleHashB(append(append([]byte{}, signedMsgPrefix...), msg...))
}

// SignMessage signs msg with the node key.  The result is zbase32 so other
// implementations can check it.
func SignMessage(key *btcec.PrivateKey, msg []byte) (string, error) {
	sig, err := ecdsa.SignCompact(key, signedMsgHash(msg), true)
	if err != nil {
		return "", err
	}
	return zbase32.EncodeToString(sig), nil
}

// RecoverMessageSigner returns the pubkey that made sig over msg.
func RecoverMessageSigner(msg []byte, sig string) (*btcec.PublicKey, error) {
	raw, err := zbase32.DecodeString(sig)
	if err != nil {
		return nil, ErrBadMessageSignature
	}
	pub, _, err := ecdsa.RecoverCompact(raw, signedMsgHash(msg))
	if err != nil {
		return nil, ErrBadMessageSignature
	}
	return pub, nil
}

// VerifyMessage says if sig over msg was made by pub.
func VerifyMessage(pub *btcec.PublicKey, msg []byte, sig string) bool {
	got, err := RecoverMessageSigner(msg, sig)
	if err != nil {
		return false
	}
	return got.IsEqual(pub)
}
