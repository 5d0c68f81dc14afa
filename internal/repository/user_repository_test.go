package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-catalog/internal/utils"
)

func newDBWithMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var insertUserSQL = regexp.QuoteMeta("INSERT INTO users (email, name, password_hash) VALUES (?,?,?)")

func TestUserCreate_NormalizesAndHashes(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(insertUserSQL).
		WithArgs("neo@example.com", "Neo", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := repo.Create(context.Background(), "  Neo@Example.com ", " Neo ", "secret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(insertUserSQL).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'neo@example.com' for key 'users.email'"})

	_, err := repo.Create(context.Background(), "neo@example.com", "Neo", "secret", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserCreate_OtherErrorWrapped(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(insertUserSQL).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "neo@example.com", "Neo", "secret", bcrypt.MinCost)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
	assert.Contains(t, err.Error(), "insert user: db down")
}

func TestUserGetByEmail(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()
	hash, err := utils.HashPassword("secret", bcrypt.MinCost)
	require.NoError(t, err)

	q := regexp.QuoteMeta("SELECT id,email,name,password_hash,created_at,updated_at FROM users WHERE email=? LIMIT 1")
	mock.ExpectQuery(q).
		WithArgs("trinity@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "created_at", "updated_at"}).
			AddRow(2, "trinity@example.com", "Trinity", hash, now, now))

	u, err := repo.GetByEmail(context.Background(), "Trinity@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), u.ID)
	assert.Equal(t, "Trinity", u.Name)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "secret"))

	mock.ExpectQuery(q).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserGetByID_NotFound(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE id=\? LIMIT 1`).
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "created_at", "updated_at"}))

	_, err := repo.GetByID(context.Background(), 77)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
