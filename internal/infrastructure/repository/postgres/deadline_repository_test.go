package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

var deadlineRowColumns = []string{
	"id", "extraction_id", "deadline_date", "description", "working_days_remaining",
	"risk_level", "source_id", "client_id", "completed", "completed_at", "created_at",
}

func TestDeadlineInsertWritesIDBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)
	date := time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC)
	clientID, extractionID := int64(4), int64(11)

	mock.ExpectQuery("INSERT INTO deadlines").
		WithArgs(extractionID, date, "File answer", 4, "high", "document:client_4_a.txt", clientID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(21), time.Now()))

	d := &domain.Deadline{
		ExtractionID:         &extractionID,
		Date:                 date,
		Description:          "File answer",
		WorkingDaysRemaining: 4,
		RiskLevel:            domain.RiskHigh,
		SourceID:             "document:client_4_a.txt",
		ClientID:             &clientID,
	}
	if err := repo.Insert(context.Background(), d); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if d.ID != 21 {
		t.Fatalf("expected id 21, got %d", d.ID)
	}
	expectationsMet(t, mock)
}

func TestDeadlineListAppliesFiltersInOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)
	clientID := int64(3)
	open := false
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE d.client_id = \$1 AND d.completed = \$2 ORDER BY d.deadline_date ASC, d.id ASC LIMIT \$3`).
		WithArgs(clientID, false, 10).
		WillReturnRows(sqlmock.NewRows(deadlineRowColumns).
			AddRow(int64(1), nil, date, "Reply", 1, "critical", "manual-1", clientID, false, nil, date))

	items, err := repo.List(context.Background(), domain.DeadlineFilter{ClientID: &clientID, Completed: &open, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 deadline, got %d", len(items))
	}
	got := items[0]
	if got.ExtractionID != nil || got.ClientID == nil || *got.ClientID != 3 || got.RiskLevel != domain.RiskCritical || got.CompletedAt != nil {
		t.Fatalf("unexpected deadline: %#v", got)
	}
	expectationsMet(t, mock)
}

func TestDeadlineListUrgentScansClientContact(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)
	date := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	columns := append(append([]string{}, deadlineRowColumns...), "name", "email")
	mock.ExpectQuery("LEFT JOIN clients c").
		WithArgs(nil).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(8), int64(2), date, "Overdue filing", 0, "overdue", "document:x", int64(1), false, nil, date, "Ana", "ana@example.com").
			AddRow(int64(9), nil, date, "Unassigned", 3, "high", "manual-2", nil, false, nil, date, "", ""))

	items, err := repo.ListUrgent(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListUrgent() error = %v", err)
	}
	if len(items) != 2 || items[0].ClientName != "Ana" || items[0].ClientEmail != "ana@example.com" {
		t.Fatalf("unexpected urgent items: %#v", items)
	}
	if items[1].ClientID != nil || items[1].ClientName != "" {
		t.Fatalf("expected unassigned item, got %#v", items[1])
	}
	expectationsMet(t, mock)
}

func TestDeadlineStatsSeparatesCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)

	mock.ExpectQuery("GROUP BY risk_level, completed").
		WithArgs(nil).
		WillReturnRows(sqlmock.NewRows([]string{"risk_level", "completed", "count"}).
			AddRow("overdue", false, 2).
			AddRow("high", false, 3).
			AddRow("high", true, 4).
			AddRow("low", false, 1))

	stats, err := repo.Stats(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := domain.DeadlineStats{Total: 6, Overdue: 2, High: 3, Low: 1, Completed: 4}
	if stats != want {
		t.Fatalf("Stats() = %#v, want %#v", stats, want)
	}
	expectationsMet(t, mock)
}

func TestDeadlineSetCompletedMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE deadlines d").
		WithArgs(int64(404), true, at).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetCompleted(context.Background(), 404, true, at)
	if !domain.IsKind(err, domain.ErrDeadlineNotFound) {
		t.Fatalf("expected ErrDeadlineNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDeadlineReopenClearsCompletedAt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)
	date := time.Date(2026, 10, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE deadlines d").
		WithArgs(int64(7), false, nil).
		WillReturnRows(sqlmock.NewRows(deadlineRowColumns).
			AddRow(int64(7), nil, date, "Hearing", 9, "low", "manual-3", nil, false, nil, date))

	d, err := repo.SetCompleted(context.Background(), 7, false, time.Now())
	if err != nil {
		t.Fatalf("SetCompleted() error = %v", err)
	}
	if d.Completed || d.CompletedAt != nil {
		t.Fatalf("expected reopened deadline, got %#v", d)
	}
	expectationsMet(t, mock)
}

func TestDeadlineUpdateRiskAndDeletes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadlineRepository(db)

	mock.ExpectExec("UPDATE deadlines SET working_days_remaining").
		WithArgs(int64(5), 2, "critical").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM deadlines WHERE client_id").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 6))

	if err := repo.UpdateRisk(context.Background(), 5, 2, domain.RiskCritical); err != nil {
		t.Fatalf("UpdateRisk() error = %v", err)
	}
	n, err := repo.DeleteByClient(context.Background(), 5)
	if err != nil || n != 6 {
		t.Fatalf("DeleteByClient() = %d, %v", n, err)
	}
	if n, err := repo.DeleteByIDs(context.Background(), nil); err != nil || n != 0 {
		t.Fatalf("DeleteByIDs(nil) = %d, %v", n, err)
	}
	expectationsMet(t, mock)
}

func TestExtractionInsertWritesIDBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExtractionRepository(db)
	ts := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO deadline_extractions").
		WithArgs("manual-1", "text", 2, ts, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))

	e := &domain.DeadlineExtraction{SourceID: "manual-1", TextExcerpt: "text", ExtractedCount: 2, ExtractionTimestamp: ts}
	if err := repo.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if e.ID != 31 {
		t.Fatalf("expected id 31, got %d", e.ID)
	}
	expectationsMet(t, mock)
}
