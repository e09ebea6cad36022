//go:generate mockgen -destination mock_tokenrepo/mock_tokenrepo.go github.com/anyproto/gcm-dispatcher/repo/tokenrepo TokenRepo

package tokenrepo

import (
	"context"
	"errors"
	"time"

	"github.com/anyproto/any-sync/app"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anyproto/gcm-dispatcher/db"
	"github.com/anyproto/gcm-dispatcher/domain"
)

const CName = "gcm.tokenrepo"

const collName = "token"

var (
	ErrTokenExists = errors.New("token exists")
)

func New() TokenRepo {
	return new(tokenRepo)
}

type TokenRepo interface {
	AddToken(ctx context.Context, token domain.Token) (err error)
	// ReplaceToken marks oldId as replaced by newId and makes sure newId is stored as valid.
	// Earlier tokens replaced by oldId are moved to newId as well.
	ReplaceToken(ctx context.Context, oldId, newId string) (err error)
	RemoveTokens(ctx context.Context, tokenIds []string) (err error)
	app.ComponentRunnable
}

type tokenRepo struct {
	coll *mongo.Collection
}

func (t *tokenRepo) Init(a *app.App) (err error) {
	t.coll = a.MustComponent(db.CName).(db.Database).Db().Collection(collName)
	return
}

func (t *tokenRepo) Run(ctx context.Context) error {
	_, err := t.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"replacedBy", 1}},
	})
	return err
}

func (t *tokenRepo) Name() (name string) {
	return CName
}

func (t *tokenRepo) AddToken(ctx context.Context, token domain.Token) (err error) {
	now := time.Now().Unix()
	_, err = t.coll.UpdateByID(
		ctx,
		token.Id,
		bson.D{
			{"$set", bson.D{
				{"status", token.Status},
				{"updated", now},
			}},
			{"$setOnInsert", bson.D{{"created", now}}},
		},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTokenExists
	}
	return
}

func (t *tokenRepo) ReplaceToken(ctx context.Context, oldId, newId string) (err error) {
	now := time.Now().Unix()
	if _, err = t.coll.UpdateByID(ctx, oldId, bson.D{{"$set", bson.D{
		{"status", domain.TokenStatusReplaced},
		{"replacedBy", newId},
		{"updated", now},
	}}}); err != nil {
		return
	}
	// tokens that were replaced by oldId now resolve to newId directly
	if _, err = t.coll.UpdateMany(ctx, bson.D{{"replacedBy", oldId}}, bson.D{{"$set", bson.D{
		{"replacedBy", newId},
		{"updated", now},
	}}}); err != nil {
		return
	}
	return t.AddToken(ctx, domain.Token{Id: newId, Status: domain.TokenStatusValid})
}

func (t *tokenRepo) RemoveTokens(ctx context.Context, tokenIds []string) (err error) {
	if len(tokenIds) == 0 {
		return nil
	}
	_, err = t.coll.DeleteMany(ctx, bson.D{{"_id", bson.D{{"$in", tokenIds}}}})
	return
}

func (t *tokenRepo) Close(ctx context.Context) (err error) {
	return nil
}
