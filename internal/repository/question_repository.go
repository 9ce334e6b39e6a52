package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haulpass/cdl-backend/internal/model"
)

// QuestionRepository handles question catalog data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// LoadAll retrieves the full question catalog, ordered by id. The in-memory
// bank is built from this once at startup.
func (r *QuestionRepository) LoadAll(ctx context.Context) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, license_classes, endorsements, category, question_text, options, correct_index, explanation
		 FROM questions
		 ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.LicenseClasses, &q.Endorsements, &q.Category, &q.Text, &q.Options, &q.CorrectIndex, &q.Explanation); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Count returns the catalog size.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}

// ReplaceAll swaps the catalog for the given set inside one transaction.
// Used by the seeding command.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
		return err
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "license_classes", "endorsements", "category", "question_text", "options", "correct_index", "explanation"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]interface{}, error) {
			q := questions[i]
			return []interface{}{q.ID, q.LicenseClasses, q.Endorsements, q.Category, q.Text, q.Options, q.CorrectIndex, q.Explanation}, nil
		}),
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
