// Package repository defines the MySQL-backed stores and the sentinel
// errors they share. Handlers compare against these values with errors.Is
// to pick a status code: ErrMovieNotFound and ErrUserNotFound become 404,
// ErrEmailExists becomes 400 and ErrInvalidRefresh becomes 401.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrMovieNotFound is returned when no movie has the requested id.
	ErrMovieNotFound = errors.New("movie not found")

	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when registering an address that is
	// already taken.
	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidRefresh covers unknown, revoked and expired refresh tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
