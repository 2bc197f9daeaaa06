package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key joins a namespace and parts with ':'.
func Key(namespace string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// HashKey shortens a variable-length part, such as a symbol list, to a
// fixed-size hex digest. Callers sort the input when order is irrelevant.
func HashKey(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// Pattern matches every key under namespace.
func Pattern(namespace string) string {
	return namespace + ":*"
}
