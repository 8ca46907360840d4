package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mit-dci/hodl/lnutil"
)

var qrCommand = &Command{
	Format:           fmt.Sprintf("%s%s%s\n", lnutil.White("qr"), lnutil.ReqColor("payreq"), lnutil.OptColor("file.png")),
	Description:      "Show a payment request as a QR code, or write it to a png file.\n",
	ShortDescription: "Show a payment request as a QR code.\n",
}

func (lc *hodlAfClient) QR(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", qrCommand.Format)
	}
	// wallets scan upper case bech32 in the denser alphanumeric mode
	req := strings.ToUpper(textArgs[0])

	if len(textArgs) > 1 {
		err := qrcode.WriteFile(req, qrcode.Medium, 512, textArgs[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(color.Output, "wrote %s\n", textArgs[1])
		return nil
	}

	q, err := qrcode.New(req, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Print(halfBlocks(q.Bitmap()))
	return nil
}

// halfBlocks draws two bitmap rows per text line.  Set modules are dark.
func halfBlocks(bm [][]bool) string {
	var sb strings.Builder
	for y := 0; y < len(bm); y += 2 {
		for x := range bm[y] {
			top := bm[y][x]
			bottom := y+1 < len(bm) && bm[y+1][x]
			switch {
			case top && bottom:
				sb.WriteRune(' ')
			case top:
				sb.WriteRune('▄')
			case bottom:
				sb.WriteRune('▀')
			default:
				sb.WriteRune('█')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
