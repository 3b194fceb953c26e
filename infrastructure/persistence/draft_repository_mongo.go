package persistence

import (
	"context"
	"errors"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const draftCollection = "drafts"

type draftDocument struct {
	ID           string    `bson:"_id"`
	OwnerID      string    `bson:"owner_id"`
	Status       string    `bson:"status"`
	ErrorMessage string    `bson:"error_message,omitempty"`
	Attempts     int       `bson:"attempts"`
	Payload      string    `bson:"payload"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toDraftDocument(d *model.Draft) (*draftDocument, error) {
	payload, err := encodePayload(d.Payload)
	if err != nil {
		return nil, err
	}
	return &draftDocument{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		Attempts:     d.Attempts,
		Payload:      string(payload),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (doc *draftDocument) toModel() (*model.Draft, error) {
	p, err := decodePayload([]byte(doc.Payload))
	if err != nil {
		return nil, err
	}
	return &model.Draft{
		ID:           doc.ID,
		OwnerID:      doc.OwnerID,
		Payload:      p,
		Status:       model.DraftStatus(doc.Status),
		ErrorMessage: doc.ErrorMessage,
		Attempts:     doc.Attempts,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}, nil
}

// DraftRepositoryMongo keeps one document per draft. Mutations are single-document
// writes, which MongoDB applies atomically.
type DraftRepositoryMongo struct {
	coll *mongo.Collection
}

func NewDraftRepositoryMongo(client *mongo.Client, database string) *DraftRepositoryMongo {
	if database == "" {
		database = "publish_pipeline"
	}
	return &DraftRepositoryMongo{coll: client.Database(database).Collection(draftCollection)}
}

var _ repository.IDraftRepository = (*DraftRepositoryMongo)(nil)

// EnsureIndexes creates the owner/updated_at index used by List.
func (r *DraftRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	return err
}

func (r *DraftRepositoryMongo) Insert(ctx context.Context, d *model.Draft) error {
	doc, err := toDraftDocument(d)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, doc)
	return err
}

func (r *DraftRepositoryMongo) GetByID(ctx context.Context, id string) (*model.Draft, error) {
	var doc draftDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

func (r *DraftRepositoryMongo) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	filter := bson.D{}
	if ownerID != "" {
		filter = bson.D{{Key: "owner_id", Value: ownerID}}
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}()

	var list []*model.Draft
	for cursor.Next(ctx) {
		var doc draftDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		d, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, cursor.Err()
}

func (r *DraftRepositoryMongo) Replace(ctx context.Context, d *model.Draft) (bool, error) {
	doc, err := toDraftDocument(d)
	if err != nil {
		return false, err
	}
	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: d.ID}}, doc)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *DraftRepositoryMongo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
