package service

import (
	"net/url"

	"github.com/skip2/go-qrcode"
)

// QRGenerator renders a link as a PNG QR code.
type QRGenerator interface {
	Generate(link string) ([]byte, error)
}

type DefaultQRGenerator struct {
	Size int
}

func (g DefaultQRGenerator) Generate(link string) ([]byte, error) {
	size := g.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}

// ActivationURL is the page a pending driver opens to activate their account.
func ActivationURL(publicURL, userID, token string) string {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("token", token)
	return publicURL + "/driver-activation?" + q.Encode()
}
