package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wuwenbin0122/chatgate/internal/models"
)

const (
	insertConversationSQL = `INSERT INTO conversations (user_message, assistant_message) VALUES ($1, $2) RETURNING id, created_at`
	recentConversationSQL = `SELECT id, created_at, user_message, assistant_message FROM conversations ORDER BY created_at DESC, id DESC LIMIT $1`
)

// InsertConversation stores one exchange and returns the row as assigned by
// the database.
func (p *Postgres) InsertConversation(ctx context.Context, userMessage, assistantMessage string) (models.ConversationRecord, error) {
	record := models.ConversationRecord{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	}
	if !p.Available() {
		return record, ErrUnavailable
	}

	if err := p.Pool.QueryRow(ctx, insertConversationSQL, userMessage, assistantMessage).Scan(&record.ID, &record.CreatedAt); err != nil {
		return record, fmt.Errorf("postgres: insert conversation: %w", classify(err))
	}
	record.CreatedAt = record.CreatedAt.UTC()

	return record, nil
}

// RecentConversations returns at most limit records, newest first.
func (p *Postgres) RecentConversations(ctx context.Context, limit int) ([]models.ConversationRecord, error) {
	if !p.Available() {
		return nil, ErrUnavailable
	}

	rows, err := p.Pool.Query(ctx, recentConversationSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query conversations: %w", classify(err))
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ConversationRecord, error) {
		var record models.ConversationRecord
		err := row.Scan(&record.ID, &record.CreatedAt, &record.UserMessage, &record.AssistantMessage)
		record.CreatedAt = record.CreatedAt.UTC()
		return record, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan conversations: %w", err)
	}

	return records, nil
}

// classify marks errors that mean the database cannot serve the request at
// all as ErrUnavailable, so callers can tell "cannot fetch" from a failed
// statement. A missing table counts: it only happens when schema bootstrap
// never ran.
func classify(err error) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.UndefinedTable:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	return err
}
