// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package functions

import "fmt"

// First returns the first element of list, nil when it is empty.
func First(list any) (any, error) {
	switch l := list.(type) {
	case []string:
		if len(l) == 0 {
			return nil, nil
		}
		return l[0], nil
	case []any:
		if len(l) == 0 {
			return nil, nil
		}
		return l[0], nil
	default:
		return nil, fmt.Errorf("cannot find first element of type %T", list)
	}
}

// Last returns the last element of list, nil when it is empty.
func Last(list any) (any, error) {
	switch l := list.(type) {
	case []string:
		if len(l) == 0 {
			return nil, nil
		}
		return l[len(l)-1], nil
	case []any:
		if len(l) == 0 {
			return nil, nil
		}
		return l[len(l)-1], nil
	default:
		return nil, fmt.Errorf("cannot find last element of type %T", list)
	}
}
