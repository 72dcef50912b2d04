package models

// DecisionAction is the verdict a policy reaches for one item.
type DecisionAction string

const (
	ActionApprove         DecisionAction = "approve"
	ActionReject          DecisionAction = "reject"
	ActionRequestApproval DecisionAction = "request_approval"
)

// IsValid reports whether a is one of the three verdicts.
func (a DecisionAction) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRequestApproval:
		return true
	}
	return false
}

// MoneyFlow is the ledger direction a decision implies when carried out.
type MoneyFlow string

const (
	FlowNone   MoneyFlow = ""
	FlowDebit  MoneyFlow = "debit"
	FlowCredit MoneyFlow = "credit"
)

// Decision is the outcome of evaluating one item. Amount and Flow describe the
// ledger movement the decision would cause if carried out.
type Decision struct {
	Action    DecisionAction `json:"action"`
	Reason    string         `json:"reason"`
	RiskLevel int            `json:"risk_level"`
	Amount    float64        `json:"amount"`
	Flow      MoneyFlow      `json:"flow,omitempty"`
	Tree      *DecisionNode  `json:"decision_tree"`
}

// MovesMoney reports whether carrying out the decision touches the ledger.
func (d Decision) MovesMoney() bool {
	return d.Flow != FlowNone && d.Amount > 0
}

// NodeType classifies a node of the explanation tree.
type NodeType string

const (
	NodeCondition NodeType = "condition"
	NodeAction    NodeType = "action"
	NodeOutcome   NodeType = "outcome"
)

// NodeResult is the evaluated state of a tree node.
type NodeResult string

const (
	ResultPass    NodeResult = "pass"
	ResultFail    NodeResult = "fail"
	ResultPending NodeResult = "pending"
)

// DecisionNode explains one check a policy performed. Trees are built bottom-up,
// are acyclic and exist for display only.
type DecisionNode struct {
	ID          string          `json:"id"`
	Type        NodeType        `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Result      NodeResult      `json:"result,omitempty"`
	Children    []*DecisionNode `json:"children,omitempty"`
	IsActive    bool            `json:"is_active,omitempty"`
}

// Find returns the first node with the given id in depth-first order.
func (n *DecisionNode) Find(id string) *DecisionNode {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every node depth-first, passing its depth from the root.
func (n *DecisionNode) Walk(fn func(node *DecisionNode, depth int)) {
	n.walk(fn, 0)
}

func (n *DecisionNode) walk(fn func(*DecisionNode, int), depth int) {
	if n == nil {
		return
	}
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// ApprovalType says what a human is being asked to approve.
type ApprovalType string

const (
	ApprovalTransaction        ApprovalType = "transaction"
	ApprovalInvestment         ApprovalType = "investment"
	ApprovalSubscriptionChange ApprovalType = "subscription_change"
)

// ApprovalRequest is raised when a decision needs a human. At most one is
// outstanding per simulation.
type ApprovalRequest struct {
	ID           string        `json:"id"`
	AgentID      string        `json:"agent_id"`
	Type         ApprovalType  `json:"type"`
	Amount       float64       `json:"amount"`
	Description  string        `json:"description"`
	Reasoning    string        `json:"reasoning"`
	RiskLevel    int           `json:"risk_level"`
	Tree         *DecisionNode `json:"decision_tree"`
	CreatedAt    int64         `json:"created_at"`
	ExpiresAt    *int64        `json:"expires_at,omitempty"`
	MerchantID   string        `json:"merchant_id,omitempty"`
	MerchantName string        `json:"merchant_name,omitempty"`
	ProductName  string        `json:"product_name,omitempty"`
	Category     string        `json:"category,omitempty"`
}
