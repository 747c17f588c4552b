// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"fmt"
	"time"
)

// FormatTime formats value, a time or an RFC 3339 string, with the Go layout.
func FormatTime(layout string, value any) (string, error) {
	t, err := asTime(value)
	if err != nil {
		return "", err
	}

	return t.Format(layout), nil
}

// ParseTime parses value with the Go layout and returns the time in UTC.
func ParseTime(layout string, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}

func asTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return ParseTime(time.RFC3339Nano, v)
	default:
		return time.Time{}, fmt.Errorf("cannot use %T as a time", value)
	}
}
