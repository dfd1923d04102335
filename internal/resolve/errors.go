package resolve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateID     = errors.New("duplicate id")
	ErrCycleDetected   = errors.New("cycle detected")
	ErrUnreachableNode = errors.New("unreachable node")
)

// DuplicateIDError reports two input records of the same entity sharing an id.
type DuplicateIDError struct {
	Entity string
	ID     int64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: %s %d", ErrDuplicateID, e.Entity, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// CycleError reports a namespace whose parent chain never reaches a root.
// Chain holds the ids walked from ID before the hop limit was hit.
type CycleError struct {
	ID    int64
	Chain []int64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: namespace %d (chain %s)", ErrCycleDetected, e.ID, joinIDs(e.Chain, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

type UnreachableError struct {
	IDs []int64
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: namespaces %s", ErrUnreachableNode, joinIDs(e.IDs, ", "))
}

func (e *UnreachableError) Unwrap() error { return ErrUnreachableNode }

func joinIDs(ids []int64, sep string) string {
	const limit = 16
	parts := make([]string, 0, min(len(ids), limit)+1)
	for i, id := range ids {
		if i == limit {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(ids)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, sep)
}
