// Package dispatch hands orders to WhatsApp: click-to-chat links for the
// customer, QR codes for those links, and Cloud API messages to the merchant.
package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const waBaseURL = "https://wa.me/"

// NormalizePhone keeps only the digits of an international phone number,
// the form wa.me and the Cloud API expect.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ClickToChatURL builds https://wa.me/<phone>?text=<text>. Spaces are
// encoded as %20 so the message renders the same in every client.
func ClickToChatURL(phone, text string) string {
	u := waBaseURL + NormalizePhone(phone)
	if text == "" {
		return u
	}
	return u + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// OrderFollowUpText is the short message used for follow-up links.
func OrderFollowUpText(orderID string) string {
	return "Order " + orderID
}

// Default QR rendering.
const (
	DefaultQRSize = 256
	MinQRSize     = 128
	MaxQRSize     = 1024
)

// QRCodePNG renders content as a PNG QR code of size×size pixels.
func QRCodePNG(content string, size int) ([]byte, error) {
	if size < MinQRSize || size > MaxQRSize {
		return nil, fmt.Errorf("qr size %d outside [%d, %d]", size, MinQRSize, MaxQRSize)
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
