package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns a stable hex digest used for cache keys.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
