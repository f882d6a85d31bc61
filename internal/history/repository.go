package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines turn persistence operations.
type Repository interface {
	Insert(ctx context.Context, turn *Turn) error
	Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error)
}

// pgxQuerier is the subset of *pgxpool.Pool the repository uses.
// pgxmock satisfies it too, which keeps the repository testable
// without a live database.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository creates a new turn repository.
func NewPostgresRepository(pool pgxQuerier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, turn *Turn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if !ValidRole(turn.Role) {
		return fmt.Errorf("invalid role %q", turn.Role)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, conversation_id, role, content)
		 VALUES ($1, $2, $3, $4)`,
		turn.ID, turn.ConversationID, turn.Role, turn.Content,
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

// Recent returns the most recent `limit` turns for a conversation,
// ordered oldest to newest so they can feed a prompt directly.
func (r *PostgresRepository) Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM (
		     SELECT id, conversation_id, role, content, created_at
		     FROM conversation_turns
		     WHERE conversation_id = $1
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
