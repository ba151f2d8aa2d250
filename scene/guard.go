package scene

import "fmt"

type visitState uint8

const (
	stateWhite visitState = iota
	stateGrey
	stateBlack
)

// EnsureNoLoops walks the dependency graph from root and fails with
// ErrLoopDetected if any path returns to a node already on the walk stack,
// or with ErrDangling if a reference names a missing object. Run after
// every edit that rewires a reference; the renderer recurses along the
// same edges and relies on this guard for termination.
func EnsureNoLoops(root ID, objects *Objects) error {
	states := make(map[ID]visitState, objects.Len())
	return visit(root, objects, states)
}

func visit(id ID, objects *Objects, states map[ID]visitState) error {
	switch states[id] {
	case stateGrey:
		return fmt.Errorf("%w: object %d", ErrLoopDetected, id)
	case stateBlack:
		return nil
	}
	obj, ok := objects.Get(id)
	if !ok {
		return fmt.Errorf("%w: object %d", ErrDangling, id)
	}
	states[id] = stateGrey
	for _, dep := range obj.Data.Dependencies(nil) {
		if err := visit(dep, objects, states); err != nil {
			return err
		}
	}
	states[id] = stateBlack
	return nil
}
