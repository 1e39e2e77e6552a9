package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// cacheKey derives a stable key from the function name and arguments.
// Argument order must not matter, so the map is serialized sorted.
func cacheKey(name string, args map[string]any) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('|')

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value, err := json.Marshal(args[k])
		if err != nil {
			value = []byte(fmt.Sprintf("%v", args[k]))
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(value)
		b.WriteByte('&')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
