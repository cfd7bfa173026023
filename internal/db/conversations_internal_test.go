package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyMarksTimeoutsUnavailable(t *testing.T) {
	err := classify(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	plain := errors.New("syntax error at or near \"LIMT\"")
	assert.Same(t, plain, classify(plain))
}

func TestClassifyServerErrors(t *testing.T) {
	cases := map[string]bool{
		pgerrcode.ConnectionFailure: true,
		pgerrcode.AdminShutdown:     true,
		pgerrcode.CannotConnectNow:  true,
		pgerrcode.UndefinedTable:    true,
		pgerrcode.SyntaxError:       false,
		pgerrcode.UniqueViolation:   false,
	}

	for code, unavailable := range cases {
		err := classify(&pgconn.PgError{Code: code, Message: "server said no"})
		assert.Equal(t, unavailable, errors.Is(err, ErrUnavailable), "code %s", code)
	}
}
