package lnutil

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/lightningnetwork/lnd/lnwire"
)

var (
	White = color.New(color.FgHiWhite).SprintFunc()
	Green = color.New(color.FgHiGreen).SprintFunc()
	Red   = color.New(color.FgHiRed).SprintFunc()

	Header   = color.New(color.FgHiCyan).SprintFunc()
	Prompt   = color.New(color.FgHiYellow).SprintFunc()
	Hash     = color.New(color.FgYellow).SprintFunc()
	Address  = color.New(color.FgMagenta).SprintFunc()
	Satoshi  = color.New(color.FgHiWhite).Add(color.Underline).SprintFunc()
	MilliSat = color.New(color.Faint).SprintFunc()
)

func ReqColor(required ...interface{}) string {
	var s string
	for i := 0; i < len(required); i++ {
		s += " <"
		s += White(required[i])
		s += ">"
	}
	return s
}

func OptColor(optional ...interface{}) string {
	var s string
	var tail string
	for i := 0; i < len(optional); i++ {
		s += " [<"
		s += White(optional[i])
		s += ">"
		tail += "]"
	}
	return s + tail
}

// MsatColor prints whole satoshis emphasized and the msat remainder faint.
func MsatColor(value lnwire.MilliSatoshi) string {
	sat := uint64(value) / 1000
	rem := uint64(value) % 1000
	if sat < 1 {
		return MilliSat(fmt.Sprintf("%d", rem))
	}
	return fmt.Sprintf("%s%s", Satoshi(sat), MilliSat(fmt.Sprintf("%03d", rem)))
}

// StateColor is green for success, red for failure, white otherwise.
func StateColor(state string) string {
	switch state {
	case "Succeeded":
		return Green(state)
	case "Failed":
		return Red(state)
	}
	return White(state)
}
