package utils

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashStrings hashes a set of strings order-independently, used for
// cache keys over chunk-id sets.
func HashStrings(inputs []string) string {
	sorted := make([]string, len(inputs))
	copy(sorted, inputs)
	sort.Strings(sorted)
	return HashString(strings.Join(sorted, "\x00"))
}
