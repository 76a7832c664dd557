package flow

import (
	"errors"
	"fmt"
)

// Validate checks a decoded document for structural soundness.
//
// Rules:
//   - At least one configuration with at least one node must exist.
//   - Node IDs must be unique within the process flow.
//   - Exactly one node must be flagged IsStartNode.
//   - Every opcode must be in the supported set.
//   - Every edge must reference a node present in the same process flow.
//
// All failures found are returned as a single joined error so operators can
// fix a broken export in one pass.
func Validate(doc *Document) error {
	if doc == nil || len(doc.Configurations) == 0 {
		return errors.New("flow: document has no IVRConfiguration entries")
	}
	cfg := doc.Flow()
	if len(cfg.ProcessFlow) == 0 {
		return errors.New("flow: IVRProcessFlow is empty")
	}

	var errs []error

	byID := make(map[int]int, len(cfg.ProcessFlow))
	var startIDs []int
	for i := range cfg.ProcessFlow {
		n := &cfg.ProcessFlow[i]
		if prev, dup := byID[n.ID]; dup {
			errs = append(errs, fmt.Errorf("node %d: NodeId duplicates IVRProcessFlow[%d]", n.ID, prev))
		} else {
			byID[n.ID] = i
		}
		if n.IsStart {
			startIDs = append(startIDs, n.ID)
		}
		if !n.Operation.IsValid() {
			errs = append(errs, fmt.Errorf("node %d: OperationCode %d is not supported", n.ID, n.Operation))
		}
	}

	switch len(startIDs) {
	case 1:
	case 0:
		errs = append(errs, errors.New("flow: no node has IsStartNode set"))
	default:
		errs = append(errs, fmt.Errorf("flow: IsStartNode set on multiple nodes %v; exactly one is required", startIDs))
	}

	for i := range cfg.ProcessFlow {
		n := &cfg.ProcessFlow[i]
		for j, e := range n.Children {
			if _, ok := byID[e.ChildNodeID]; !ok {
				errs = append(errs, fmt.Errorf("node %d: ChildNodeConfig[%d] references unknown node %d", n.ID, j, e.ChildNodeID))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
