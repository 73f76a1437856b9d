package domain

import (
	"encoding/json"
	"sort"
	"time"
)

type RiskLevel string

const (
	RiskOverdue  RiskLevel = "overdue"
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskUnknown  RiskLevel = "unknown"
)

var DeadlineRiskLevels = []RiskLevel{RiskOverdue, RiskCritical, RiskHigh, RiskMedium, RiskLow}

func ParseRiskLevel(value string) (RiskLevel, bool) {
	for _, level := range DeadlineRiskLevels {
		if string(level) == value {
			return level, true
		}
	}
	return "", false
}

// RiskPriority orders risk tiers from most to least urgent.
func RiskPriority(level RiskLevel) int {
	switch level {
	case RiskOverdue:
		return 1
	case RiskCritical:
		return 2
	case RiskHigh:
		return 3
	case RiskMedium:
		return 4
	case RiskLow:
		return 5
	default:
		return 6
	}
}

type Deadline struct {
	ID                   int64      `json:"id"`
	ExtractionID         *int64     `json:"extraction_id,omitempty"`
	Date                 time.Time  `json:"date"`
	Description          string     `json:"description"`
	WorkingDaysRemaining int        `json:"working_days_remaining"`
	RiskLevel            RiskLevel  `json:"risk_level"`
	SourceID             string     `json:"source_id"`
	ClientID             *int64     `json:"client_id"`
	Completed            bool       `json:"completed"`
	CompletedAt          *time.Time `json:"completed_at"`
	CreatedAt            time.Time  `json:"created_at"`
}

func (d Deadline) MarshalJSON() ([]byte, error) {
	type alias Deadline
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(d), Date: d.Date.Format(DateLayout)})
}

// UrgentDeadline is a deadline joined with the owning client's contact fields.
type UrgentDeadline struct {
	Deadline
	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
}

func (u UrgentDeadline) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(u.Deadline)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["client_name"] = u.ClientName
	fields["client_email"] = u.ClientEmail
	return json.Marshal(fields)
}

// SortByUrgency orders by risk priority, then by ascending date.
func SortByUrgency(items []UrgentDeadline) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := RiskPriority(items[i].RiskLevel), RiskPriority(items[j].RiskLevel)
		if pi != pj {
			return pi < pj
		}
		return items[i].Date.Before(items[j].Date)
	})
}

type DeadlineFilter struct {
	ClientID  *int64
	RiskLevel RiskLevel
	Completed *bool
	From      *time.Time
	To        *time.Time
	Limit     int
}

type DeadlineStats struct {
	Total     int `json:"total"`
	Overdue   int `json:"overdue"`
	Critical  int `json:"critical"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
	Completed int `json:"completed"`
}

func (s *DeadlineStats) Add(level RiskLevel, n int) {
	s.Total += n
	switch level {
	case RiskOverdue:
		s.Overdue += n
	case RiskCritical:
		s.Critical += n
	case RiskHigh:
		s.High += n
	case RiskMedium:
		s.Medium += n
	case RiskLow:
		s.Low += n
	}
}

// DeadlineExtraction is the audit record of one extraction call.
type DeadlineExtraction struct {
	ID                  int64     `json:"id"`
	SourceID            string    `json:"source_id"`
	TextExcerpt         string    `json:"text_excerpt"`
	ExtractedCount      int       `json:"extracted_count"`
	ExtractionTimestamp time.Time `json:"extraction_timestamp"`
	ClientID            *int64    `json:"client_id"`
}

type ExtractionResult struct {
	ExtractionID int64      `json:"extraction_id"`
	Deadlines    []Deadline `json:"deadlines"`
	Count        int        `json:"count"`
}
