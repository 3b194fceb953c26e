package persistence

import (
	"context"
	"database/sql"
	"errors"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
)

// DraftRepository stores drafts in PostgreSQL. Each mutation is one statement.
type DraftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) *DraftRepository { return &DraftRepository{db: db} }

var _ repository.IDraftRepository = (*DraftRepository)(nil)

func (r *DraftRepository) Insert(ctx context.Context, d *model.Draft) error {
	payload, err := encodePayload(d.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO drafts (`+draftColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.OwnerID, string(d.Status), nullString(d.ErrorMessage), d.Attempts, string(payload), d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DraftRepository) GetByID(ctx context.Context, id string) (*model.Draft, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id=$1`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *DraftRepository) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM drafts ORDER BY updated_at DESC`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE owner_id=$1 ORDER BY updated_at DESC`, ownerID)
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

func (r *DraftRepository) Replace(ctx context.Context, d *model.Draft) (bool, error) {
	payload, err := encodePayload(d.Payload)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE drafts SET status=$1, error_message=$2, attempts=$3, payload=$4, updated_at=$5 WHERE id=$6`,
		string(d.Status), nullString(d.ErrorMessage), d.Attempts, string(payload), d.UpdatedAt, d.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *DraftRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
