package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"threadline/models"
	"threadline/session"
)

type sessionDoc struct {
	ID           string       `bson:"_id"`
	User         *models.User `bson:"user,omitempty"`
	AccessToken  string       `bson:"accessToken"`
	RefreshToken string       `bson:"refreshToken"`
	CreatedAt    time.Time    `bson:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt"`
}

// SessionRepository stores session records in MongoDB with both tokens
// sealed.
type SessionRepository struct {
	coll   *mongo.Collection
	sealer *session.Sealer
}

func NewSessionRepository(coll *mongo.Collection, sealer *session.Sealer) *SessionRepository {
	return &SessionRepository{coll: coll, sealer: sealer}
}

func (r *SessionRepository) Load(ctx context.Context, id string) (*session.Record, error) {
	var doc sessionDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.fromDoc(doc)
}

func (r *SessionRepository) Save(ctx context.Context, rec *session.Record) error {
	doc, err := r.toDoc(rec)
	if err != nil {
		return err
	}
	_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *SessionRepository) toDoc(rec *session.Record) (sessionDoc, error) {
	access, err := r.sealer.Seal(rec.Tokens.Access)
	if err != nil {
		return sessionDoc{}, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.sealer.Seal(rec.Tokens.Refresh)
	if err != nil {
		return sessionDoc{}, fmt.Errorf("seal refresh token: %w", err)
	}
	return sessionDoc{
		ID:           rec.ID,
		User:         rec.User,
		AccessToken:  access,
		RefreshToken: refresh,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// fromDoc treats a record that no longer opens as signed out rather than
// failing the request.
func (r *SessionRepository) fromDoc(doc sessionDoc) (*session.Record, error) {
	rec := &session.Record{
		ID:        doc.ID,
		User:      doc.User,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	access, err := r.sealer.Open(doc.AccessToken)
	if err != nil {
		rec.User = nil
		return rec, nil
	}
	refresh, err := r.sealer.Open(doc.RefreshToken)
	if err != nil {
		rec.User = nil
		return rec, nil
	}
	rec.Tokens = session.Tokens{Access: access, Refresh: refresh}
	return rec, nil
}
