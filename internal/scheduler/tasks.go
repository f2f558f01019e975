package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskEligibilityRecheck = "qualification.eligibility_recheck"

type EligibilityRecheckPayload struct {
	OrganizationID string `json:"organizationId"`
	LeadID         string `json:"leadId"`
}

func NewEligibilityRecheckTask(payload EligibilityRecheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEligibilityRecheck, data), nil
}

func ParseEligibilityRecheckPayload(task *asynq.Task) (EligibilityRecheckPayload, error) {
	var payload EligibilityRecheckPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EligibilityRecheckPayload{}, err
	}
	return payload, nil
}

// IDs parses the payload identifiers.
func (p EligibilityRecheckPayload) IDs() (uuid.UUID, uuid.UUID, error) {
	orgID, err := uuid.Parse(p.OrganizationID)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, fmt.Errorf("organizationId: %w", err)
	}
	leadID, err := uuid.Parse(p.LeadID)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, fmt.Errorf("leadId: %w", err)
	}
	return orgID, leadID, nil
}
