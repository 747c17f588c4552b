// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import "strconv"

// State is the stage a pipeline is executing.
type State int32

const (
	StatePending State = iota
	StateFetching
	StateTransforming
	StateDeduping
	StateWriting
	StateCheckpointing
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StatePending:       "PENDING",
	StateFetching:      "FETCHING",
	StateTransforming:  "TRANSFORMING",
	StateDeduping:      "DEDUPING",
	StateWriting:       "WRITING",
	StateCheckpointing: "CHECKPOINTING",
	StateDone:          "DONE",
	StateFailed:        "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "State(" + strconv.Itoa(int(s)) + ")"
}
