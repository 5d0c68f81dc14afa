package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

func newMovieRepoWithMock(t *testing.T) (*MovieRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMovieRepo(db), mock
}

var (
	insertMovieSQL  = regexp.QuoteMeta("INSERT INTO movies (title, release_year, format) VALUES (?,?,?)")
	selectMovieSQL  = regexp.QuoteMeta("SELECT id, title, release_year, format FROM movies WHERE id=? LIMIT 1")
	selectActorsSQL = `SELECT movie_id, name FROM movie_actors WHERE movie_id IN \(.*\) ORDER BY movie_id, position`
)

func TestMovieCreate_Success(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertMovieSQL).
		WithArgs("X", 1999, "DVD").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO movie_actors (movie_id, position, name) VALUES (?,?,?),(?,?,?)")).
		WithArgs(7, 0, "A", 7, 1, "B").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	m := model.Movie{Title: "X", ReleaseYear: 1999, Format: model.FormatDVD, Actors: []string{"A", "B"}}
	require.NoError(t, repo.Create(context.Background(), &m))
	assert.Equal(t, uint64(7), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieCreate_NoActorsSkipsChildInsert(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertMovieSQL).
		WithArgs("Solo", 2018, "Blu-ray").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	m := model.Movie{Title: "Solo", ReleaseYear: 2018, Format: model.FormatBluRay}
	require.NoError(t, repo.Create(context.Background(), &m))
	assert.Equal(t, []string{}, m.Actors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieCreate_ValidationFailsBeforeSQL(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	cases := []model.Movie{
		{Title: "", ReleaseYear: 1999, Format: model.FormatDVD},
		{Title: "Y", ReleaseYear: 1999},
		{Title: "Z", ReleaseYear: 2000, Format: "Laserdisc"},
		{Title: "W", ReleaseYear: 2000, Format: model.FormatVHS, Actors: []string{"A", ""}},
	}
	for _, m := range cases {
		err := repo.Create(context.Background(), &m)
		assert.True(t, validation.IsValidationError(err), "movie %+v: %v", m, err)
		assert.Zero(t, m.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieCreate_ActorInsertFailsRollsBack(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertMovieSQL).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("INSERT INTO movie_actors").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	m := model.Movie{Title: "X", ReleaseYear: 1999, Format: model.FormatDVD, Actors: []string{"A"}}
	err := repo.Create(context.Background(), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert actors: disk full")
	assert.Zero(t, m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieGetByID_Found(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectQuery(selectMovieSQL).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "release_year", "format"}).
			AddRow(5, "Heat", 1995, "Blu-ray"))
	mock.ExpectQuery(selectActorsSQL).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "name"}).
			AddRow(5, "Al Pacino").
			AddRow(5, "Robert De Niro"))

	m, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.Movie{
		ID: 5, Title: "Heat", ReleaseYear: 1995, Format: model.FormatBluRay,
		Actors: []string{"Al Pacino", "Robert De Niro"},
	}, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieGetByID_NotFound(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectQuery(selectMovieSQL).WithArgs(404).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestMovieUpdate_ReplacesActors(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM movies WHERE id=? FOR UPDATE")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE movies SET title=?, release_year=?, format=? WHERE id=?")).
		WithArgs("Alien", 1979, "VHS", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movie_actors WHERE movie_id=?")).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO movie_actors (movie_id, position, name) VALUES (?,?,?)")).
		WithArgs(4, 0, "Sigourney Weaver").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := model.Movie{ID: 4, Title: "Alien", ReleaseYear: 1979, Format: model.FormatVHS, Actors: []string{"Sigourney Weaver"}}
	require.NoError(t, repo.Update(context.Background(), &m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieUpdate_NotFound(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM movies WHERE id=? FOR UPDATE")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	m := model.Movie{ID: 99, Title: "Alien", ReleaseYear: 1979, Format: model.FormatVHS}
	assert.ErrorIs(t, repo.Update(context.Background(), &m), ErrMovieNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieDelete(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)
	q := regexp.QuoteMeta("DELETE FROM movies WHERE id=?")

	mock.ExpectExec(q).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), 1))

	mock.ExpectExec(q).WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrMovieNotFound)

	mock.ExpectExec(q).WithArgs(3).WillReturnError(errors.New("lock wait timeout"))
	err := repo.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMovieNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoviePing(t *testing.T) {
	repo, mock := newMovieRepoWithMock(t)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, repo.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
