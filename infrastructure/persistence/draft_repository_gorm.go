package persistence

import (
	"context"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"

	"gorm.io/gorm"
)

// DraftRecord is the gorm row for a draft. Payload holds the JSON encoded model.Payload.
type DraftRecord struct {
	ID           string    `gorm:"column:id;primaryKey;size:64"`
	OwnerID      string    `gorm:"column:owner_id;size:255;index:idx_drafts_owner_updated,priority:1;not null"`
	Status       string    `gorm:"column:status;size:16;not null"`
	ErrorMessage *string   `gorm:"column:error_message;type:text"`
	Attempts     int       `gorm:"column:attempts;not null;default:0"`
	Payload      string    `gorm:"column:payload;type:longtext;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:datetime(6);not null;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:datetime(6);index:idx_drafts_owner_updated,priority:2;not null;autoUpdateTime:false"`
}

func (DraftRecord) TableName() string { return "drafts" }

func toDraftRecord(d *model.Draft) (*DraftRecord, error) {
	payload, err := encodePayload(d.Payload)
	if err != nil {
		return nil, err
	}
	rec := &DraftRecord{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Status:    string(d.Status),
		Attempts:  d.Attempts,
		Payload:   string(payload),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.ErrorMessage != "" {
		msg := d.ErrorMessage
		rec.ErrorMessage = &msg
	}
	return rec, nil
}

func (rec *DraftRecord) toModel() (*model.Draft, error) {
	p, err := decodePayload([]byte(rec.Payload))
	if err != nil {
		return nil, err
	}
	d := &model.Draft{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Payload:   p,
		Status:    model.DraftStatus(rec.Status),
		Attempts:  rec.Attempts,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
	if rec.ErrorMessage != nil {
		d.ErrorMessage = *rec.ErrorMessage
	}
	return d, nil
}

// DraftRepositoryGorm stores drafts in MySQL through gorm.
type DraftRepositoryGorm struct {
	db *gorm.DB
}

func NewDraftRepositoryGorm(db *gorm.DB) *DraftRepositoryGorm { return &DraftRepositoryGorm{db: db} }

var _ repository.IDraftRepository = (*DraftRepositoryGorm)(nil)

// EnsureDraftSchemaGorm migrates the drafts table.
func EnsureDraftSchemaGorm(db *gorm.DB) error {
	return db.AutoMigrate(&DraftRecord{})
}

func (r *DraftRepositoryGorm) Insert(ctx context.Context, d *model.Draft) error {
	rec, err := toDraftRecord(d)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *DraftRepositoryGorm) GetByID(ctx context.Context, id string) (*model.Draft, error) {
	var recs []DraftRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0].toModel()
}

func (r *DraftRepositoryGorm) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	var recs []DraftRecord
	q := r.db.WithContext(ctx)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Order("updated_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	list := make([]*model.Draft, 0, len(recs))
	for i := range recs {
		d, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, nil
}

func (r *DraftRepositoryGorm) Replace(ctx context.Context, d *model.Draft) (bool, error) {
	rec, err := toDraftRecord(d)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Model(&DraftRecord{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
		"status":        rec.Status,
		"error_message": rec.ErrorMessage,
		"attempts":      rec.Attempts,
		"payload":       rec.Payload,
		"updated_at":    rec.UpdatedAt,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *DraftRepositoryGorm) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&DraftRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
