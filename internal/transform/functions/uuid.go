// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import (
	"fmt"

	"github.com/google/uuid"
)

var namespaces = map[string]uuid.UUID{
	"dns":  uuid.NameSpaceDNS,
	"url":  uuid.NameSpaceURL,
	"oid":  uuid.NameSpaceOID,
	"x500": uuid.NameSpaceX500,
}

// UUIDV5 returns the name based UUID of name inside namespace. The namespace is one of dns, url,
// oid, x500 or a UUID.
func UUIDV5(namespace string, name any) (string, error) {
	space, ok := namespaces[namespace]
	if !ok {
		parsed, err := uuid.Parse(namespace)
		if err != nil {
			return "", fmt.Errorf("invalid uuid namespace %q: %w", namespace, err)
		}
		space = parsed
	}

	return uuid.NewSHA1(space, []byte(ToString(name))).String(), nil
}
