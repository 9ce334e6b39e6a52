package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRow is one archived exam outcome.
type ReportRow struct {
	ID              int64     `json:"id"`
	DeviceID        string    `json:"device_id"`
	ExamID          string    `json:"exam_id"`
	Total           int       `json:"total"`
	Correct         int       `json:"correct"`
	Score           int       `json:"score"`
	Passed          bool      `json:"passed"`
	WeakestCategory string    `json:"weakest_category"`
	ElapsedMinutes  int       `json:"elapsed_minutes"`
	AnswerLog       []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReportRepository archives completed exam reports.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// InsertBatch writes a batch of reports in one statement.
func (r *ReportRepository) InsertBatch(ctx context.Context, batch []ReportRow) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	deviceIDs := make([]string, 0, n)
	examIDs := make([]string, 0, n)
	totals := make([]int, 0, n)
	corrects := make([]int, 0, n)
	scores := make([]int, 0, n)
	passeds := make([]bool, 0, n)
	weakests := make([]string, 0, n)
	elapseds := make([]int, 0, n)
	logs := make([][]byte, 0, n)

	for _, row := range batch {
		deviceIDs = append(deviceIDs, row.DeviceID)
		examIDs = append(examIDs, row.ExamID)
		totals = append(totals, row.Total)
		corrects = append(corrects, row.Correct)
		scores = append(scores, row.Score)
		passeds = append(passeds, row.Passed)
		weakests = append(weakests, row.WeakestCategory)
		elapseds = append(elapseds, row.ElapsedMinutes)
		logs = append(logs, row.AnswerLog)
	}

	query := `
		INSERT INTO exam_reports
			(device_id, exam_id, total, correct, score, passed, weakest_category, elapsed_minutes, answer_log)
		SELECT
			u.device_id, u.exam_id, u.total, u.correct, u.score, u.passed, u.weakest_category, u.elapsed_minutes, u.answer_log
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::int[],
			$4::int[],
			$5::int[],
			$6::bool[],
			$7::text[],
			$8::int[],
			$9::jsonb[]
		) AS u (device_id, exam_id, total, correct, score, passed, weakest_category, elapsed_minutes, answer_log)
	`

	_, err := r.pool.Exec(ctx, query, deviceIDs, examIDs, totals, corrects, scores, passeds, weakests, elapseds, logs)
	return err
}

// Insert writes a single report. Fallback path for batch failures.
func (r *ReportRepository) Insert(ctx context.Context, row ReportRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_reports
			(device_id, exam_id, total, correct, score, passed, weakest_category, elapsed_minutes, answer_log)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.DeviceID, row.ExamID, row.Total, row.Correct, row.Score, row.Passed,
		row.WeakestCategory, row.ElapsedMinutes, row.AnswerLog,
	)
	return err
}

// ListRecent retrieves a device's most recent archived reports, newest first.
func (r *ReportRepository) ListRecent(ctx context.Context, deviceID string, limit int) ([]ReportRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, device_id, exam_id, total, correct, score, passed, weakest_category, elapsed_minutes, created_at
		 FROM exam_reports
		 WHERE device_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		deviceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ReportRow
	for rows.Next() {
		var row ReportRow
		if err := rows.Scan(&row.ID, &row.DeviceID, &row.ExamID, &row.Total, &row.Correct, &row.Score, &row.Passed, &row.WeakestCategory, &row.ElapsedMinutes, &row.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// PassStats aggregates a device's archived attempts.
type PassStats struct {
	Attempts  int `json:"attempts"`
	Passes    int `json:"passes"`
	BestScore int `json:"best_score"`
}

// Stats returns attempt aggregates for a device.
func (r *ReportRepository) Stats(ctx context.Context, deviceID string) (PassStats, error) {
	var s PassStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE passed),
		        COALESCE(MAX(score), 0)
		 FROM exam_reports
		 WHERE device_id = $1`,
		deviceID,
	).Scan(&s.Attempts, &s.Passes, &s.BestScore)
	return s, err
}
