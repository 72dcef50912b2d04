package policy

import "agentsim/internal/agent/models"

// check is one evaluated condition in a decision path.
type check struct {
	id          string
	label       string
	description string
	result      models.NodeResult
}

// trail records the checks a policy evaluates, in order. Only checks that were
// actually reached are recorded, so the resulting tree mirrors the branch taken.
type trail struct {
	rootLabel string
	checks    []check
}

func newTrail(rootLabel string) *trail {
	return &trail{rootLabel: rootLabel}
}

func (t *trail) add(id, label string, result models.NodeResult) {
	t.checks = append(t.checks, check{id: id, label: label, result: result})
}

func (t *trail) addDescribed(id, label, description string, result models.NodeResult) {
	t.checks = append(t.checks, check{id: id, label: label, description: description, result: result})
}

// build assembles the tree bottom-up: the outcome leaf first, then each check
// wrapping the node below it, then the root.
func (t *trail) build(outcomeLabel string, result models.NodeResult) *models.DecisionNode {
	node := &models.DecisionNode{
		ID:     "outcome",
		Type:   models.NodeOutcome,
		Label:  outcomeLabel,
		Result: result,
	}
	for i := len(t.checks) - 1; i >= 0; i-- {
		c := t.checks[i]
		node = &models.DecisionNode{
			ID:          c.id,
			Type:        models.NodeCondition,
			Label:       c.label,
			Description: c.description,
			Result:      c.result,
			Children:    []*models.DecisionNode{node},
		}
	}
	return &models.DecisionNode{
		ID:       "root",
		Type:     models.NodeCondition,
		Label:    t.rootLabel,
		IsActive: true,
		Children: []*models.DecisionNode{node},
	}
}

// outcomeFor maps a verdict onto the default outcome label and result.
func outcomeFor(action models.DecisionAction) (string, models.NodeResult) {
	switch action {
	case models.ActionApprove:
		return "Approve", models.ResultPass
	case models.ActionReject:
		return "Reject", models.ResultFail
	default:
		return "Request Approval", models.ResultPending
	}
}

// AppendNode returns a copy of tree's root with node appended to its children.
func AppendNode(tree *models.DecisionNode, node *models.DecisionNode) *models.DecisionNode {
	if tree == nil {
		return node
	}
	cp := *tree
	cp.Children = append(append([]*models.DecisionNode(nil), tree.Children...), node)
	return &cp
}
