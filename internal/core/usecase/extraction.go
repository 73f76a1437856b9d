package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type ExtractionRequest struct {
	Text     string
	SourceID string
	ClientID *int64
	Hints    *domain.HintPayload
}

// ExtractionAgent mines deadlines from text with the primary model and persists
// an audit row plus one row per parsed deadline.
type ExtractionAgent struct {
	model       ports.ModelClient
	deadlines   ports.DeadlineRepository
	extractions ports.ExtractionRepository
	holidays    domain.HolidaySet
	now         ports.Clock
}

func NewExtractionAgent(
	model ports.ModelClient,
	deadlines ports.DeadlineRepository,
	extractions ports.ExtractionRepository,
	holidays domain.HolidaySet,
	now ports.Clock,
) *ExtractionAgent {
	if now == nil {
		now = time.Now
	}
	if holidays == nil {
		holidays = domain.NoHolidays{}
	}
	return &ExtractionAgent{
		model:       model,
		deadlines:   deadlines,
		extractions: extractions,
		holidays:    holidays,
		now:         now,
	}
}

// Items are decoded one at a time so a malformed entry only loses itself.
type deadlineResponse struct {
	Deadlines []json.RawMessage `json:"deadlines"`
}

type deadlineItem struct {
	Date        modelString `json:"date"`
	Description modelString `json:"description"`
}

func (a *ExtractionAgent) Extract(ctx context.Context, req ExtractionRequest) (*domain.ExtractionResult, error) {
	now := a.now()
	today := domain.DateOf(now)
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		sourceID = "manual-" + uuid.NewString()
	}

	parsed := a.parseDeadlines(ctx, req.Text, today, req.Hints, sourceID)

	extraction := &domain.DeadlineExtraction{
		SourceID:            sourceID,
		TextExcerpt:         truncateRunes(req.Text, extractionExcerptLimit),
		ExtractedCount:      len(parsed),
		ExtractionTimestamp: now.UTC(),
		ClientID:            req.ClientID,
	}
	if err := a.extractions.Insert(ctx, extraction); err != nil {
		return nil, fmt.Errorf("persist extraction audit: %w", err)
	}

	saved := make([]domain.Deadline, 0, len(parsed))
	for i, item := range parsed {
		deadline, err := a.buildDeadline(item, today, sourceID, req.ClientID, extraction.ID)
		if err != nil {
			slog.Warn("deadline_skipped", "source_id", sourceID, "index", i, "error", err)
			continue
		}
		if err := a.deadlines.Insert(ctx, &deadline); err != nil {
			slog.Warn("deadline_skipped", "source_id", sourceID, "index", i, "error", fmt.Errorf("insert deadline: %w", err))
			continue
		}
		saved = append(saved, deadline)
	}

	return &domain.ExtractionResult{
		ExtractionID: extraction.ID,
		Deadlines:    saved,
		Count:        len(saved),
	}, nil
}

// ExtractManual runs extraction over free text that is not tied to a document.
func (a *ExtractionAgent) ExtractManual(ctx context.Context, text string, clientID *int64) (*domain.ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract deadlines", errors.New("text is required"))
	}
	return a.Extract(ctx, ExtractionRequest{Text: text, ClientID: clientID})
}

func (a *ExtractionAgent) parseDeadlines(
	ctx context.Context,
	text string,
	today time.Time,
	hints *domain.HintPayload,
	sourceID string,
) []json.RawMessage {
	raw, err := a.model.GenerateJSON(ctx, buildDeadlinePrompt(text, today, hints))
	if err != nil {
		slog.Warn("deadline_extraction_degraded", "source_id", sourceID, "reason", "model_call", "error", err)
		return nil
	}
	var resp deadlineResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		slog.Warn("deadline_extraction_degraded", "source_id", sourceID, "reason", "malformed_output", "error", err)
		return nil
	}
	return resp.Deadlines
}

func (a *ExtractionAgent) buildDeadline(
	raw json.RawMessage,
	today time.Time,
	sourceID string,
	clientID *int64,
	extractionID int64,
) (domain.Deadline, error) {
	var item deadlineItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Deadline{}, fmt.Errorf("decode deadline item: %w", err)
	}
	rawDate := item.Date.String()
	if rawDate == "" {
		return domain.Deadline{}, errors.New("missing date")
	}
	description := item.Description.String()
	if description == "" {
		return domain.Deadline{}, errors.New("missing description")
	}
	date, err := domain.ParseDate(rawDate)
	if err != nil {
		return domain.Deadline{}, fmt.Errorf("parse date %q: %w", rawDate, err)
	}

	days, risk := domain.AssessDeadline(date, today, a.holidays)
	return domain.Deadline{
		ExtractionID:         &extractionID,
		Date:                 date,
		Description:          description,
		WorkingDaysRemaining: days,
		RiskLevel:            risk,
		SourceID:             sourceID,
		ClientID:             clientID,
	}, nil
}
