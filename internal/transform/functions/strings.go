// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quote wraps the string representation of the input value in double quotes.
func Quote(s any) string {
	return strconv.Quote(ToString(s))
}

// TrimSpace removes all leading and trailing whitespace from the input string.
func TrimSpace(s any) string {
	return strings.TrimSpace(ToString(s))
}

// TrimPrefix removes prefix from s when present.
func TrimPrefix(prefix string, s any) string {
	return strings.TrimPrefix(ToString(s), prefix)
}

// TrimSuffix removes suffix from s when present.
func TrimSuffix(suffix string, s any) string {
	return strings.TrimSuffix(ToString(s), suffix)
}

// Replace substitutes every occurrence of old with replacement in s.
func Replace(old, replacement string, s any) string {
	return strings.ReplaceAll(ToString(s), old, replacement)
}

// ToUpper converts the input string to uppercase.
func ToUpper(s any) string {
	return strings.ToUpper(ToString(s))
}

// ToLower converts the input string to lowercase.
func ToLower(s any) string {
	return strings.ToLower(ToString(s))
}

// Truncate keeps the first length runes of s, or the last ones when length is negative.
func Truncate(length int, s any) string {
	runes := []rune(ToString(s))
	switch {
	case length < 0 && len(runes)+length > 0:
		return string(runes[len(runes)+length:])
	case length >= 0 && len(runes) > length:
		return string(runes[:length])
	}

	return string(runes)
}

// Split splits the input string by the given separator.
func Split(sep string, s any) []string {
	return strings.Split(ToString(s), sep)
}

// Join concatenates the string form of the elements with sep.
func Join(sep string, elements ...any) string {
	parts := make([]string, 0, len(elements))
	for _, element := range elements {
		parts = append(parts, ToString(element))
	}

	return strings.Join(parts, sep)
}

// EncodeBase64 encodes the input string to its Base64 representation.
func EncodeBase64(input any) string {
	return base64.StdEncoding.EncodeToString([]byte(ToString(input)))
}

// DecodeBase64 decodes a Base64-encoded string and returns the original value.
func DecodeBase64(input string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}

// ToString returns the textual form of a record value. Nil is the empty string, times use RFC 3339.
func ToString(obj any) string {
	switch v := obj.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
