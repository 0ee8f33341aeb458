package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"risparmi/internal/core"
)

// PlanCompletedType is the AMQP message type of PlanCompletedMessage.
const PlanCompletedType = "plan.completed"

// PlanCompletedMessage carries a whole plan so consumers need no access to
// the server's storage.
type PlanCompletedMessage struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Strategy    string          `json:"strategy"`
	Model       string          `json:"model,omitempty"`
	SavingsGoal int             `json:"savings_goal"`
	Excluded    string          `json:"excluded_category"`
	Original    core.ExpenseMap `json:"original"`
	Adjusted    core.ExpenseMap `json:"adjusted"`
	Reply       string          `json:"reply,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewPlanCompletedMessage(p core.Plan) *PlanCompletedMessage {
	return &PlanCompletedMessage{
		ID:          p.ID,
		CreatedAt:   p.CreatedAt,
		Strategy:    p.Strategy.String(),
		Model:       p.Model,
		SavingsGoal: p.SavingsGoal,
		Excluded:    p.Excluded,
		Original:    p.Original,
		Adjusted:    p.Adjusted,
		Reply:       p.Reply,
		Timestamp:   time.Now(),
	}
}

// Plan converts the message back into a domain plan.
func (m *PlanCompletedMessage) Plan() core.Plan {
	return core.Plan{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		Strategy:    core.Strategy(m.Strategy),
		Model:       m.Model,
		SavingsGoal: m.SavingsGoal,
		Excluded:    m.Excluded,
		Original:    m.Original,
		Adjusted:    m.Adjusted,
		Reply:       m.Reply,
	}
}

func (m *PlanCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PlanCompletedMessageFromJSON decodes and checks a message body.
func PlanCompletedMessageFromJSON(data []byte) (*PlanCompletedMessage, error) {
	var msg PlanCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("plan message without id")
	}
	if !core.Strategy(msg.Strategy).IsValid() {
		return nil, fmt.Errorf("plan message %s: unknown strategy %q", msg.ID, msg.Strategy)
	}
	return &msg, nil
}
