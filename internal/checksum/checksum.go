// Package checksum computes the version tags used for If-Match commits.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// JSON returns the digest of v's JSON encoding. Struct field order is fixed,
// so equal records always hash the same.
func JSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return Sum(data), nil
}

// ETag quotes sum for the ETag header.
func ETag(sum string) string {
	return strconv.Quote(sum)
}

// FromETag extracts the digest from an If-Match or ETag header value,
// accepting quoted, unquoted and weak ("W/") forms. "*" and "" yield "".
func FromETag(header string) string {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}
