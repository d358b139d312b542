package flowedit

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SuggestionType enumerates the edit operations the engine accepts.
type SuggestionType string

const (
	SuggestAddTask       SuggestionType = "add_task"
	SuggestAddGateway    SuggestionType = "add_gateway"
	SuggestChangeGateway SuggestionType = "change_gateway"
	SuggestOptimizeFlow  SuggestionType = "optimize_flow"
	SuggestAddRole       SuggestionType = "add_role"
)

// SuggestionDetails is the type-specific payload of a Suggestion. Fields
// irrelevant to the suggestion type are ignored.
type SuggestionDetails struct {
	Name           string      `json:"name,omitempty"`
	GatewayType    string      `json:"gateway_type,omitempty"`
	NewGatewayType string      `json:"new_gateway_type,omitempty"`
	RoleName       string      `json:"role_name,omitempty"`
	RemoveElements []ElementID `json:"remove_elements,omitempty"`
}

// Suggestion is a declarative, externally produced edit request. ID is the
// caller's idempotency key; the engine records it with each version and
// audit entry but does not deduplicate across calls.
type Suggestion struct {
	ID              string            `json:"id" validate:"required"`
	Type            SuggestionType    `json:"type" validate:"required,oneof=add_task add_gateway change_gateway optimize_flow add_role"`
	TargetElementID ElementID         `json:"target_element_id,omitempty"`
	Description     string            `json:"description,omitempty"`
	Details         SuggestionDetails `json:"details"`
}

var validate = validator.New()

// Validate checks the structural validity of the suggestion before any
// graph work happens.
func (s *Suggestion) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("flowedit: invalid suggestion: %w", err)
	}
	return nil
}
