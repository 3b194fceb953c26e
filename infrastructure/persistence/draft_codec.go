package persistence

import (
	"database/sql"
	"encoding/json"

	"publish-pipeline/domain/model"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const draftColumns = `id, owner_id, status, error_message, attempts, payload, created_at, updated_at`

func encodePayload(p model.Payload) ([]byte, error) {
	return json.Marshal(p)
}

func decodePayload(b []byte) (model.Payload, error) {
	var p model.Payload
	if len(b) == 0 {
		return p, nil
	}
	err := json.Unmarshal(b, &p)
	return p, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanDraft(row rowScanner) (*model.Draft, error) {
	d := &model.Draft{}
	var (
		status  string
		errMsg  sql.NullString
		payload []byte
	)
	if err := row.Scan(&d.ID, &d.OwnerID, &status, &errMsg, &d.Attempts, &payload, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = model.DraftStatus(status)
	if errMsg.Valid {
		d.ErrorMessage = errMsg.String
	}
	p, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	d.Payload = p
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}
