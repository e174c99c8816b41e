package employees

import (
	"context"
	"errors"
)

// walk collects the active subtree under root breadth first, one query per level. The
// visited set and the depth bound keep the walk finite whatever the stored links are.
// It returns the tree and the reports flattened depth first.
func (s *Service) walk(ctx context.Context, root Employee) (*OrgNode, []Employee, error) {
	rootNode := newOrgNode(root)
	nodes := map[int64]*OrgNode{root.ID: rootNode}
	visited := map[int64]bool{root.ID: true}
	children := make(map[int64][]Employee)

	frontier := []int64{root.ID}
	for depth := 1; len(frontier) > 0; depth++ {
		reports, err := s.repo.ListActiveReports(ctx, frontier)
		if err != nil {
			return nil, nil, err
		}
		var next []int64
		for _, r := range reports {
			if visited[r.ID] {
				continue
			}
			parent, ok := nodes[r.ManagerID]
			if !ok {
				continue
			}
			if depth > MaxHierarchyDepth {
				return nil, nil, ErrHierarchyTooDeep
			}
			visited[r.ID] = true
			node := newOrgNode(r)
			parent.Reports = append(parent.Reports, node)
			nodes[r.ID] = node
			children[r.ManagerID] = append(children[r.ManagerID], r)
			next = append(next, r.ID)
		}
		frontier = next
	}

	var flat []Employee
	stack := reversed(children[root.ID])
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		flat = append(flat, e)
		stack = append(stack, reversed(children[e.ID])...)
	}
	return rootNode, flat, nil
}

// ensureNotAncestor climbs from candidate manager towards the root and fails if it meets
// employeeID, which would make the employee its own transitive manager.
func ensureNotAncestor(ctx context.Context, tx TxRepository, employeeID int64, manager Employee) error {
	seen := make(map[int64]bool)
	cur := manager
	for steps := 0; ; steps++ {
		if cur.ID == employeeID {
			return ErrCycle
		}
		if !cur.HasManager() {
			return nil
		}
		if seen[cur.ID] {
			// Stored data already loops; refuse to attach anything to it.
			return ErrCycle
		}
		if steps >= MaxHierarchyDepth {
			return ErrHierarchyTooDeep
		}
		seen[cur.ID] = true
		parent, err := tx.GetByID(ctx, cur.ManagerID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		cur = parent
	}
}

func newOrgNode(e Employee) *OrgNode {
	return &OrgNode{LDAP: e.LDAP, Name: e.DisplayName(), Level: e.Level, Reports: []*OrgNode{}}
}

func reversed(in []Employee) []Employee {
	out := make([]Employee, len(in))
	for i, e := range in {
		out[len(in)-1-i] = e
	}
	return out
}
