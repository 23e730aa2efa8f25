package service

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"memo-service/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "memo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = sqlite.Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestUserService(db *sql.DB) *userService {
	svc := NewUserService(sqlite.NewUserRepository(db), quietLogger()).(*userService)
	svc.cost = bcrypt.MinCost
	return svc
}
