package persistence

import (
	"context"
	"database/sql"
	"errors"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
)

// DraftRepositoryMSSQL is the SQL Server variant of DraftRepository.
type DraftRepositoryMSSQL struct {
	db *sql.DB
}

func NewDraftRepositoryMSSQL(db *sql.DB) *DraftRepositoryMSSQL { return &DraftRepositoryMSSQL{db: db} }

var _ repository.IDraftRepository = (*DraftRepositoryMSSQL)(nil)

func (r *DraftRepositoryMSSQL) Insert(ctx context.Context, d *model.Draft) error {
	payload, err := encodePayload(d.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO dbo.drafts (`+draftColumns+`) VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8)`,
		d.ID, d.OwnerID, string(d.Status), nullString(d.ErrorMessage), d.Attempts, string(payload), d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DraftRepositoryMSSQL) GetByID(ctx context.Context, id string) (*model.Draft, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM dbo.drafts WHERE id=@p1`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *DraftRepositoryMSSQL) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM dbo.drafts ORDER BY updated_at DESC`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM dbo.drafts WHERE owner_id=@p1 ORDER BY updated_at DESC`, ownerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *DraftRepositoryMSSQL) Replace(ctx context.Context, d *model.Draft) (bool, error) {
	payload, err := encodePayload(d.Payload)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.drafts SET status=@p1, error_message=@p2, attempts=@p3, payload=@p4, updated_at=@p5 WHERE id=@p6`,
		string(d.Status), nullString(d.ErrorMessage), d.Attempts, string(payload), d.UpdatedAt, d.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *DraftRepositoryMSSQL) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dbo.drafts WHERE id=@p1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
