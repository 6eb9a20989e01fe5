package workflow

import "math/rand"

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomID generates the short lowercase-alphanumeric request identifier the
// signing API expects.
func randomID(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return string(b)
}
