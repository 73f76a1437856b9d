package domain

import (
	"math"
	"time"
)

type ValidationType string

const (
	ValidationClassification ValidationType = "classification"
	ValidationDeadline       ValidationType = "deadline"
)

func ParseValidationType(value string) (ValidationType, bool) {
	switch ValidationType(value) {
	case ValidationClassification, ValidationDeadline:
		return ValidationType(value), true
	default:
		return "", false
	}
}

type ValidationStatus string

const (
	ValidationValidated ValidationStatus = "validated"
	ValidationWarning   ValidationStatus = "warning"
	ValidationError     ValidationStatus = "error"
	ValidationPending   ValidationStatus = "pending"
)

// ValidationOutcome is one audit computation. A deadline batch audit is stored as
// one Validation row per deadline id, each carrying the same outcome.
type ValidationOutcome struct {
	Status             ValidationStatus `json:"validation_status"`
	ConfidenceScore    float64          `json:"confidence_score"`
	Feedback           string           `json:"feedback"`
	VerifiedItems      []string         `json:"verified_items"`
	Discrepancies      []string         `json:"discrepancies"`
	MissingInformation []string         `json:"missing_information"`
}

func ErrorOutcome(feedback string) ValidationOutcome {
	return ValidationOutcome{
		Status:             ValidationError,
		ConfidenceScore:    0,
		Feedback:           feedback,
		VerifiedItems:      []string{},
		Discrepancies:      []string{},
		MissingInformation: []string{},
	}
}

type Validation struct {
	ID           int64          `json:"id"`
	Type         ValidationType `json:"validation_type"`
	EntityID     string         `json:"entity_id"`
	ClientID     *int64         `json:"client_id"`
	ExtractionID *int64         `json:"extraction_id"`
	ValidationOutcome
	CreatedAt time.Time `json:"created_at"`
}

// PendingValidation stands in for an entity that has not been audited yet.
func PendingValidation(validationType ValidationType, entityID string) Validation {
	return Validation{
		Type:     validationType,
		EntityID: entityID,
		ValidationOutcome: ValidationOutcome{
			Status:             ValidationPending,
			ConfidenceScore:    0,
			Feedback:           "Validation not yet performed",
			VerifiedItems:      []string{},
			Discrepancies:      []string{},
			MissingInformation: []string{},
		},
	}
}

func ClampConfidence(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return math.Max(0, math.Min(1, value))
}
