package signature

import "fmt"

// CheckStatus is a room member's signature check state.
type CheckStatus string

// Check states recorded in a room's membership list.
const (
	CheckStatusPending CheckStatus = "pending"
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusFailed  CheckStatus = "failed"
)

// ParseCheckStatus parses a stored status value.
func ParseCheckStatus(s string) (CheckStatus, error) {
	switch CheckStatus(s) {
	case CheckStatusPending, CheckStatusPassed, CheckStatusFailed:
		return CheckStatus(s), nil
	default:
		return "", fmt.Errorf("unknown check status %q", s)
	}
}

// TrainStatus is the state of a room's model.
type TrainStatus string

// Model training states.
const (
	TrainStatusUntrained TrainStatus = "untrained"
	TrainStatusTrained   TrainStatus = "trained"
)
