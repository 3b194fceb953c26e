package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"publish-pipeline/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var draftRowColumns = []string{"id", "owner_id", "status", "error_message", "attempts", "payload", "created_at", "updated_at"}

func payloadJSON(t *testing.T, p model.Payload) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return b
}

func TestDraftRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := sampleDraft("draft_a", "u1", model.DraftStatusFailed)
	d.ErrorMessage = "catalog unreachable"
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO drafts (id, owner_id, status, error_message, attempts, payload, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`)).
		WithArgs("draft_a", "u1", "failed", "catalog unreachable", 0, sqlmock.AnyArg(), d.CreatedAt, d.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDraftRepository(db).Insert(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := sampleDraft("draft_a", "u1", model.DraftStatusDraft)
	q := regexp.QuoteMeta(`SELECT id, owner_id, status, error_message, attempts, payload, created_at, updated_at FROM drafts WHERE id=$1`)
	mock.ExpectQuery(q).WithArgs("draft_a").
		WillReturnRows(sqlmock.NewRows(draftRowColumns).
			AddRow("draft_a", "u1", "draft", nil, 2, payloadJSON(t, d.Payload), d.CreatedAt, d.UpdatedAt))
	mock.ExpectQuery(q).WithArgs("draft_missing").
		WillReturnRows(sqlmock.NewRows(draftRowColumns))

	repo := NewDraftRepository(db)
	got, err := repo.GetByID(context.Background(), "draft_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.DraftStatusDraft, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "", got.ErrorMessage)
	assert.Equal(t, "Sunset", got.Payload.Title)
	assert.Len(t, got.Payload.Media.Sources, 2)

	missing, err := repo.GetByID(context.Background(), "draft_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepository_ListByOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := sampleDraft("draft_a", "u1", model.DraftStatusFailed)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM drafts WHERE owner_id=$1 ORDER BY updated_at DESC`)).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(draftRowColumns).
			AddRow("draft_a", "u1", "failed", "boom", 1, payloadJSON(t, d.Payload), d.CreatedAt, d.UpdatedAt).
			AddRow("draft_b", "u1", "draft", nil, 0, payloadJSON(t, d.Payload), d.CreatedAt, d.UpdatedAt))

	list, err := NewDraftRepository(db).List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "boom", list[0].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepository_ReplaceAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := sampleDraft("draft_a", "u1", model.DraftStatusPending)
	update := regexp.QuoteMeta(`UPDATE drafts SET status=$1, error_message=$2, attempts=$3, payload=$4, updated_at=$5 WHERE id=$6`)
	mock.ExpectExec(update).WithArgs("pending", nil, 0, sqlmock.AnyArg(), d.UpdatedAt, "draft_a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs("pending", nil, 0, sqlmock.AnyArg(), d.UpdatedAt, "draft_a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM drafts WHERE id=$1`)).WithArgs("draft_a").
		WillReturnError(errors.New("connection reset"))

	repo := NewDraftRepository(db)
	ok, err := repo.Replace(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Replace(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Delete(context.Background(), "draft_a")
	assert.Error(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryMSSQL_UsesNamedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM dbo.drafts WHERE id=@p1`)).WithArgs("draft_a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM dbo.drafts ORDER BY updated_at DESC`)).
		WillReturnRows(sqlmock.NewRows(draftRowColumns))

	repo := NewDraftRepositoryMSSQL(db)
	ok, err := repo.Delete(context.Background(), "draft_a")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDraftSchema_AddsAttemptsColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS drafts`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS idx_drafts_owner_updated`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS idx_drafts_status_created`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`)).
		WithArgs("drafts", "attempts").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE drafts ADD COLUMN attempts`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureDraftSchema(db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func newGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestDraftRepositoryGorm_InsertAndGet(t *testing.T) {
	gormDB, mock := newGormMock(t)
	d := sampleDraft("draft_a", "u1", model.DraftStatusFailed)
	d.ErrorMessage = "offline"

	mock.ExpectExec("INSERT INTO `drafts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `drafts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(draftRowColumns).
			AddRow("draft_a", "u1", "failed", "offline", 1, string(payloadJSON(t, d.Payload)), d.CreatedAt, d.UpdatedAt))

	repo := NewDraftRepositoryGorm(gormDB)
	require.NoError(t, repo.Insert(context.Background(), d))

	got, err := repo.GetByID(context.Background(), "draft_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "offline", got.ErrorMessage)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, []string{"beach"}, got.Payload.Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryGorm_ReplaceDelete(t *testing.T) {
	gormDB, mock := newGormMock(t)
	d := sampleDraft("draft_a", "u1", model.DraftStatusPending)
	d.UpdatedAt = d.UpdatedAt.Add(time.Second)

	mock.ExpectExec("UPDATE `drafts` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `drafts` WHERE id = \\?").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewDraftRepositoryGorm(gormDB)
	ok, err := repo.Replace(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(context.Background(), "draft_a")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftDocumentRoundTrip(t *testing.T) {
	d := sampleDraft("draft_a", "u1", model.DraftStatusFailed)
	d.ErrorMessage = "source expired"
	d.Attempts = 3

	doc, err := toDraftDocument(d)
	require.NoError(t, err)
	assert.Equal(t, "draft_a", doc.ID)

	back, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, d.ErrorMessage, back.ErrorMessage)
	assert.Equal(t, d.Attempts, back.Attempts)
	assert.Equal(t, d.Payload.Media.Sources, back.Payload.Media.Sources)
	assert.True(t, d.CreatedAt.Equal(back.CreatedAt))
}
