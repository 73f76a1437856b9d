package domain

import "time"

type HintFailureKind string

const (
	HintNotConfigured     HintFailureKind = "not_configured"
	HintMalformedResponse HintFailureKind = "malformed_response"
	HintUpstreamFailure   HintFailureKind = "upstream_failure"
)

type HintEntities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
	Amounts       []string `json:"amounts"`
}

type HintDate struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

type HintMetadata struct {
	SuggestedType string `json:"suggested_type"`
	Language      string `json:"language"`
	Topic         string `json:"topic"`
	Sentiment     string `json:"sentiment"`
}

// HintPayload is the secondary model's preliminary extraction.
type HintPayload struct {
	Entities          HintEntities `json:"entities"`
	DatesAndDeadlines []HintDate   `json:"dates_and_deadlines"`
	KeyFacts          []string     `json:"key_facts"`
	DocumentMetadata  HintMetadata `json:"document_metadata"`
}

type HintFailure struct {
	Kind   HintFailureKind `json:"kind"`
	Reason string          `json:"reason"`
}

// HintResult holds exactly one of Payload or Failure.
type HintResult struct {
	Payload *HintPayload `json:"data,omitempty"`
	Failure *HintFailure `json:"error,omitempty"`
}

func HintSuccess(payload HintPayload) HintResult {
	return HintResult{Payload: &payload}
}

func HintFailed(kind HintFailureKind, reason string) HintResult {
	return HintResult{Failure: &HintFailure{Kind: kind, Reason: reason}}
}

func (r HintResult) OK() bool {
	return r.Payload != nil
}

// Status is "success" or the failure kind.
func (r HintResult) Status() string {
	if r.OK() {
		return "success"
	}
	if r.Failure == nil {
		return string(HintUpstreamFailure)
	}
	return string(r.Failure.Kind)
}

// HintRecord is a cached hint payload for one document upload.
type HintRecord struct {
	ID            int64       `json:"id"`
	ClientID      *int64      `json:"client_id"`
	DocumentID    string      `json:"document_id"`
	ExtractedData HintPayload `json:"extracted_data"`
	ModelVersion  string      `json:"model_version"`
	CreatedAt     time.Time   `json:"created_at"`
}
