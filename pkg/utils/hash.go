package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// PageHash returns the upper-case hex MD5 digest of raw page bytes.
func PageHash(body []byte) string {
	sum := md5.Sum(body)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
