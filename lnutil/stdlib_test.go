package lnutil

import (
	"bytes"
	"testing"
)

func TestU32tB(t *testing.T) {
	cases := map[uint32][]byte{
		0:          {0x00, 0x00, 0x00, 0x00},
		1:          {0x00, 0x00, 0x00, 0x01},
		0xffffffff: {0xff, 0xff, 0xff, 0xff},
	}
	for i, want := range cases {
		if !bytes.Equal(U32tB(i), want) {
			t.Fatalf("U32tB(%d) = %x, want %x", i, U32tB(i), want)
		}
		if BtU32(want) != i {
			t.Fatalf("BtU32(%x) = %d, want %d", want, BtU32(want), i)
		}
	}

	// wrong length
	if BtU32([]byte{0x01}) != 0xffffffff {
		t.Fatalf("short input should give ffffffff")
	}
}

func TestYupNope(t *testing.T) {
	for _, s := range []string{"yes", "Y", " on ", "1"} {
		if !YupString(s) || NopeString(s) {
			t.Fatalf("%q should be yup", s)
		}
	}
	for _, s := range []string{"no", "OFF", "", "false"} {
		if !NopeString(s) || YupString(s) {
			t.Fatalf("%q should be nope", s)
		}
	}
	if YupString("maybe") || NopeString("maybe") {
		t.Fatalf("maybe is neither")
	}
}
