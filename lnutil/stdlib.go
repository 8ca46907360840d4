package lnutil

import (
	"encoding/binary"
	"strings"

	"github.com/mit-dci/hodl/logging"
)

// U32tB is uint32 to 4 bytes, big endian.
func U32tB(i uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, i)
	return b
}

// BtU32 is 4 bytes to uint32.  Returns ffffffff if it isn't 4 bytes.
func BtU32(b []byte) uint32 {
	if len(b) != 4 {
		logging.Errorf("Got %x to BtU32 (%d bytes)\n", b, len(b))
		return 0xffffffff
	}
	return binary.BigEndian.Uint32(b)
}

// NopeString returns true if the string means "nope"
func NopeString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nope", "no", "n", "false", "0", "nil", "null", "disable", "off", "":
		return true
	}
	return false
}

// YupString returns true if the string means "yup"
func YupString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yup", "yes", "y", "true", "1", "ok", "enable", "on":
		return true
	}
	return false
}
