// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package functions contains the helpers available inside template transforms. Every helper is
// deterministic: the same record always produces the same value.
package functions

import "text/template"

// FuncMap returns the helpers keyed by their template name.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"quote":        Quote,
		"trim":         TrimSpace,
		"trimPrefix":   TrimPrefix,
		"trimSuffix":   TrimSuffix,
		"replace":      Replace,
		"upper":        ToUpper,
		"lower":        ToLower,
		"truncate":     Truncate,
		"split":        Split,
		"join":         Join,
		"first":        First,
		"last":         Last,
		"toString":     ToString,
		"encodeBase64": EncodeBase64,
		"decodeBase64": DecodeBase64,
		"sha256":       Sha256Sum,
		"sha512":       Sha512Sum,
		"toJSON":       ToJSON,
		"coalesce":     Coalesce,
		"formatTime":   FormatTime,
		"parseTime":    ParseTime,
		"uuidv5":       UUIDV5,
	}
}
