package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ammarsecurity/nexchat/internal/models"
	"github.com/ammarsecurity/nexchat/pkg/database"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session for the pair and returns the full record.
func (r *SessionRepository) Create(ctx context.Context, user1, user2 string, kind models.SessionKind) (*models.ChatSession, error) {
	query := `
		INSERT INTO chat_sessions (user1_id, user2_id, kind)
		VALUES ($1, $2, $3)
		RETURNING id, user1_id, user2_id, kind, created_at
	`

	session := &models.ChatSession{}
	err := r.db.QueryRowContext(ctx, query, user1, user2, kind).Scan(
		&session.ID,
		&session.User1ID,
		&session.User2ID,
		&session.Kind,
		&session.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// FindActive returns the session only when userID is one of its members and
// it has not ended. Returns nil when no such session exists.
func (r *SessionRepository) FindActive(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	query := `
		SELECT id, user1_id, user2_id, kind, created_at, ended_at
		FROM chat_sessions
		WHERE id = $1 AND (user1_id = $2 OR user2_id = $2) AND ended_at IS NULL
	`

	session := &models.ChatSession{}
	err := r.db.QueryRowContext(ctx, query, sessionID, userID).Scan(
		&session.ID,
		&session.User1ID,
		&session.User2ID,
		&session.Kind,
		&session.CreatedAt,
		&session.EndedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Find returns the session regardless of its ended state, as long as userID
// is a member. Reports may arrive after a partner has already left.
func (r *SessionRepository) Find(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	query := `
		SELECT id, user1_id, user2_id, kind, created_at, ended_at
		FROM chat_sessions
		WHERE id = $1 AND (user1_id = $2 OR user2_id = $2)
	`

	session := &models.ChatSession{}
	err := r.db.QueryRowContext(ctx, query, sessionID, userID).Scan(
		&session.ID,
		&session.User1ID,
		&session.User2ID,
		&session.Kind,
		&session.CreatedAt,
		&session.EndedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// End marks the session as over. Ending an already-ended or foreign session
// is a no-op.
func (r *SessionRepository) End(ctx context.Context, sessionID, userID string) error {
	query := `
		UPDATE chat_sessions
		SET ended_at = NOW()
		WHERE id = $1 AND (user1_id = $2 OR user2_id = $2) AND ended_at IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, sessionID, userID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	return nil
}
