package conversations

import (
	"context"
	"errors"
	"fmt"

	"github.com/wuwenbin0122/chatgate/internal/db"
	"github.com/wuwenbin0122/chatgate/internal/models"
	"github.com/wuwenbin0122/chatgate/internal/utils"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Store interface {
	RecentConversations(ctx context.Context, limit int) ([]models.ConversationRecord, error)
}

type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// Reader serves the newest stored exchanges. A nil store means the database
// was never reached and every call reports the service as unavailable.
type Reader struct {
	store Store
	opts  Options
}

func NewReader(store Store, opts Options) *Reader {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}

	return &Reader{store: store, opts: opts}
}

// ResolveLimit applies the default to a missing limit and clamps large ones
// to the configured maximum. Limits below one are rejected.
func (r *Reader) ResolveLimit(limit *int) (int, error) {
	if limit == nil {
		return r.opts.DefaultLimit, nil
	}
	if *limit < 1 {
		return 0, utils.E(utils.CodeInvalidArgument, "conversations.List", "limit must be a positive integer", nil)
	}
	if *limit > r.opts.MaxLimit {
		return r.opts.MaxLimit, nil
	}
	return *limit, nil
}

// List returns up to limit records, newest first.
func (r *Reader) List(ctx context.Context, limit *int, identity string) ([]models.ConversationRecord, error) {
	const op = "conversations.List"

	if identity == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	n, err := r.ResolveLimit(limit)
	if err != nil {
		return nil, err
	}

	if r.store == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "database unavailable", db.ErrUnavailable)
	}

	records, err := r.store.RecentConversations(ctx, n)
	if err != nil {
		if errors.Is(err, db.ErrUnavailable) {
			return nil, utils.E(utils.CodeUnavailable, op, "database unavailable", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversations", fmt.Errorf("recent conversations: %w", err))
	}

	if records == nil {
		records = []models.ConversationRecord{}
	}

	return records, nil
}
