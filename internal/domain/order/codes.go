package order

import (
	"crypto/rand"

	"github.com/go-faster/errors"
)

// codeAlphabet omits 0/O and 1/I so codes survive being read aloud or
// hand-copied from a confirmation email.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	orderCodeLen    = 8
	trackingCodeLen = 12
)

// NewCode returns a human-shareable order code: short, uppercase, collision
// resistant via crypto/rand but not meant to be a secret.
func NewCode() (string, error) {
	return randomCode(orderCodeLen)
}

// NewTrackingCode returns the longer secondary code used for guest order
// lookup.
func NewTrackingCode() (string, error) {
	return randomCode(trackingCodeLen)
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
