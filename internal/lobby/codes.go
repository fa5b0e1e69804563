package lobby

import "crypto/rand"

const (
	RoomCodeLength   = 6
	InviteCodeLength = 12

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// randomCode returns n uppercase alphanumerics from crypto/rand.
func randomCode(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	// 252 is the largest multiple of 36 below 256
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
