package shares

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+file_shares\s*\(file_id,\s*user_id,\s*can_view,\s*can_edit,\s*can_delete\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*ON\s+CONFLICT\s*\(file_id,\s*user_id\)\s*DO\s+UPDATE\s+SET`

	mock.ExpectExec(q).
		WithArgs("f-1", "u-1", true, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	share := &models.Share{FileID: "f-1", UserID: "u-1", CanView: true}
	if err := repo.Upsert(context.Background(), share); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+file_shares`).
		WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &models.Share{FileID: "f-1", UserID: "u-1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+file_id,\s*user_id,\s*can_view,\s*can_edit,\s*can_delete,\s*created_at\s+FROM\s+file_shares\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"file_id", "user_id", "can_view", "can_edit", "can_delete", "created_at"}).
		AddRow("f-1", "u-1", true, true, false, now)
	mock.ExpectQuery(q).WithArgs("f-1", "u-1").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "f-1", "u-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.CanView || !got.CanEdit || got.CanDelete {
		t.Fatalf("unexpected share: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+file_id,`).
		WithArgs("f-1", "ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "f-1", "ghost"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListByFile_JoinsEmails(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+s\.file_id,.*JOIN\s+users\s+u\s+ON\s+u\.id\s*=\s*s\.user_id.*ORDER\s+BY\s+s\.created_at\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"file_id", "user_id", "email", "can_view", "can_edit", "can_delete", "created_at"}).
		AddRow("f-1", "u-1", "bob@inpt.ma", true, false, false, now).
		AddRow("f-1", "u-2", "carol@inpt.ma", true, true, true, now)
	mock.ExpectQuery(q).WithArgs("f-1").WillReturnRows(rows)

	got, err := repo.ListByFile(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("ListByFile error: %v", err)
	}
	if len(got) != 2 || got[0].UserEmail != "bob@inpt.ma" || !got[1].CanDelete {
		t.Fatalf("unexpected shares: %+v", got)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+file_shares\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*$`).
		WithArgs("f-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "f-1", "ghost"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCountByFile(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+file_shares\s+WHERE\s+file_id\s*=\s*\$1\s*$`).
		WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByFile(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("CountByFile error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3, got %d", n)
	}
}
