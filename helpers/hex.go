package helpers

import (
	"encoding/hex"
	"strings"
)

func MustHex(s string) []byte {
	b, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseHex accepts "2a000000", "2a 00 00 00" and "2a:00:00:00".
func ParseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '\t':
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}
