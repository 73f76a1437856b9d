package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Insert(ctx context.Context, a *domain.Analysis) error {
	input, err := marshalJSON("input_data", a.InputData)
	if err != nil {
		return err
	}
	result, err := marshalJSON("result", a.Result)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
INSERT INTO analyses (firm_id, analysis_type, input_data, result, risk_level)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`,
		a.FirmID, string(a.Type), input, result, string(a.Result.RiskLevel),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// ListRecent returns the newest analyses for a firm; an empty type matches all.
func (r *AnalysisRepository) ListRecent(ctx context.Context, firmID string, analysisType domain.AnalysisType, limit int) ([]domain.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, firm_id, analysis_type, input_data, result, created_at
FROM analyses
WHERE firm_id = $1 AND ($2 = '' OR analysis_type = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, firmID, string(analysisType), limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Analysis, 0)
	for rows.Next() {
		var a domain.Analysis
		var kind string
		var input, result []byte
		if err := rows.Scan(&a.ID, &a.FirmID, &kind, &input, &result, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		a.Type = domain.AnalysisType(kind)
		if err := unmarshalJSON("input_data", input, &a.InputData); err != nil {
			return nil, err
		}
		if err := unmarshalJSON("result", result, &a.Result); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func (r *AnalysisRepository) Stats(ctx context.Context, firmID string) (domain.AnalysisStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT analysis_type, risk_level, COUNT(*)
FROM analyses
WHERE firm_id = $1
GROUP BY analysis_type, risk_level`, firmID)
	if err != nil {
		return domain.AnalysisStats{}, fmt.Errorf("analysis stats: %w", err)
	}
	defer rows.Close()

	stats := domain.AnalysisStats{ByType: map[string]int{}, ByRisk: map[string]int{}}
	for rows.Next() {
		var kind, risk string
		var n int
		if err := rows.Scan(&kind, &risk, &n); err != nil {
			return domain.AnalysisStats{}, fmt.Errorf("scan analysis stats: %w", err)
		}
		stats.Total += n
		stats.ByType[kind] += n
		stats.ByRisk[risk] += n
	}
	if err := rows.Err(); err != nil {
		return domain.AnalysisStats{}, fmt.Errorf("iterate analysis stats: %w", err)
	}
	return stats, nil
}
