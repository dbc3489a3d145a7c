package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines history persistence operations.
type Repository interface {
	GetChat(ctx context.Context, userID uuid.UUID) ([]Message, error)
	SaveChat(ctx context.Context, userID uuid.UUID, messages []Message) error
	CreateAnalysis(ctx context.Context, a *Analysis) error
	ListAnalyses(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Analysis, error)
	CountAnalyses(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetChat returns nil when the user has no saved conversation.
func (r *PostgresRepository) GetChat(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT messages FROM chat_histories WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}

	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decoding chat history: %w", err)
	}
	return msgs, nil
}

func (r *PostgresRepository) SaveChat(ctx context.Context, userID uuid.UUID, messages []Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding chat history: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO chat_histories (user_id, messages, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET messages = EXCLUDED.messages, updated_at = NOW()`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("saving chat history: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateAnalysis(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	suggestions, err := json.Marshal(a.Suggestions)
	if err != nil {
		return fmt.Errorf("encoding suggestions: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO food_analyses (id, user_id, food_name, calories, protein, carbs, fat, fiber, description, suggestions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		a.ID, a.UserID, a.FoodName, a.Calories, a.Protein, a.Carbs, a.Fat, a.Fiber, a.Description, suggestions,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting food analysis: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAnalyses(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Analysis, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, food_name, calories, protein, carbs, fat, fiber, description, suggestions, created_at
		 FROM food_analyses
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing food analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var (
			a   Analysis
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.FoodName, &a.Calories, &a.Protein, &a.Carbs,
			&a.Fat, &a.Fiber, &a.Description, &raw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning food analysis: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Suggestions); err != nil {
			return nil, fmt.Errorf("decoding suggestions: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountAnalyses(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM food_analyses WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting food analyses: %w", err)
	}
	return count, nil
}
