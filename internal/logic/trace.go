package logic

import "github.com/promoserve/promoserve/internal/models"

// TraceStep records the surviving candidates at one selection stage.
type TraceStep struct {
	Stage       string            `json:"stage"`
	CampaignIDs []string          `json:"campaign_ids"`
	Details     map[string]string `json:"details,omitempty"`
}

// SelectionTrace captures the ordered list of steps performed by a selector.
// It is only populated when debug tracing is requested.
type SelectionTrace struct {
	Steps []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage using the supplied candidates.
func (t *SelectionTrace) AddStep(stage string, campaigns []models.Campaign) {
	if t == nil {
		return
	}
	step := TraceStep{Stage: stage}
	for _, c := range campaigns {
		step.CampaignIDs = append(step.CampaignIDs, c.ID)
	}
	t.Steps = append(t.Steps, step)
}

// AddStepWithDetails appends a trace entry with extra context about why
// candidates were dropped.
func (t *SelectionTrace) AddStepWithDetails(stage string, campaigns []models.Campaign, details map[string]string) {
	if t == nil {
		return
	}
	step := TraceStep{Stage: stage, Details: details}
	for _, c := range campaigns {
		step.CampaignIDs = append(step.CampaignIDs, c.ID)
	}
	t.Steps = append(t.Steps, step)
}
