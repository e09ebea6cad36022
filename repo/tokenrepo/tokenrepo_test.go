package tokenrepo

import (
	"context"
	"testing"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyproto/gcm-dispatcher/db"
	"github.com/anyproto/gcm-dispatcher/domain"
)

var ctx = context.Background()

func TestTokenRepo_AddToken(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.AddToken(ctx, domain.Token{Id: "1"}))
	require.NoError(t, fx.AddToken(ctx, domain.Token{Id: "1"}))
	token, ok := fx.get(t, "1")
	require.True(t, ok)
	assert.Equal(t, domain.TokenStatusValid, token.Status)
	assert.NotZero(t, token.Created)
	_, ok = fx.get(t, "2")
	assert.False(t, ok)
}

func TestTokenRepo_ReplaceToken(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.AddToken(ctx, domain.Token{Id: "old"}))
	require.NoError(t, fx.ReplaceToken(ctx, "old", "new"))

	old, ok := fx.get(t, "old")
	require.True(t, ok)
	assert.Equal(t, domain.TokenStatusReplaced, old.Status)
	assert.Equal(t, "new", old.ReplacedBy)
	newToken, ok := fx.get(t, "new")
	require.True(t, ok)
	assert.Equal(t, domain.TokenStatusValid, newToken.Status)

	t.Run("chain", func(t *testing.T) {
		require.NoError(t, fx.ReplaceToken(ctx, "new", "newest"))
		old, ok := fx.get(t, "old")
		require.True(t, ok)
		assert.Equal(t, "newest", old.ReplacedBy)
	})
}

func TestTokenRepo_RemoveTokens(t *testing.T) {
	fx := newFixture(t)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, fx.AddToken(ctx, domain.Token{Id: id}))
	}
	require.NoError(t, fx.RemoveTokens(ctx, []string{"1", "3"}))
	require.NoError(t, fx.RemoveTokens(ctx, nil))
	for id, exists := range map[string]bool{"1": false, "2": true, "3": false} {
		_, ok := fx.get(t, id)
		assert.Equal(t, exists, ok, id)
	}
}

func newFixture(t testing.TB) *fixture {
	fx := &fixture{
		TokenRepo: New(),
		a:         new(app.App),
	}
	fx.a.Register(&testConfig{
		Mongo: db.Mongo{
			Connect:  "mongodb://localhost:27017",
			Database: "gcm_unittest",
		},
	}).
		Register(db.New()).
		Register(fx.TokenRepo)
	require.NoError(t, fx.a.Start(ctx))
	t.Cleanup(func() {
		fx.finish(t)
	})
	return fx
}

type fixture struct {
	TokenRepo
	a *app.App
}

func (fx *fixture) get(t testing.TB, id string) (token domain.Token, ok bool) {
	err := fx.TokenRepo.(*tokenRepo).coll.FindOne(ctx, bson.D{{"_id", id}}).Decode(&token)
	if err == mongo.ErrNoDocuments {
		return token, false
	}
	require.NoError(t, err)
	return token, true
}

func (fx *fixture) finish(t testing.TB) {
	_ = fx.TokenRepo.(*tokenRepo).coll.Drop(ctx)
	require.NoError(t, fx.a.Close(ctx))
}

type testConfig struct {
	Mongo db.Mongo
}

func (t testConfig) Init(a *app.App) (err error) {
	return
}

func (t testConfig) Name() (name string) {
	return "config"
}

func (t testConfig) GetMongo() db.Mongo {
	return t.Mongo
}
