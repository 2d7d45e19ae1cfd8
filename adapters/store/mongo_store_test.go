package store

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	mt.Run("find issuer by wallet", func(mt *mtest.T) {
		s := NewMongoStore(mt.Client, "walletauth")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "walletauth.issuers", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "issuer-1"},
			{Key: "primaryWallet", Value: "0xabc"},
			{Key: "bio", Value: "hello"},
			{Key: "walletLinks", Value: bson.A{bson.D{{Key: "network", Value: "aptos"}, {Key: "address", Value: "0x1"}}}},
			{Key: "createdAt", Value: now},
		}))

		issuer, err := s.FindIssuerByWallet(ctx, "0xabc")
		require.NoError(mt, err)
		assert.Equal(mt, "issuer-1", issuer.ID)
		assert.Equal(mt, "hello", issuer.Bio)
		assert.True(mt, issuer.StakedAmount.IsZero())
		assert.Equal(mt, []core.WalletLink{{Network: "aptos", Address: "0x1"}}, issuer.WalletLinks)
	})

	mt.Run("find issuer not found", func(mt *mtest.T) {
		s := NewMongoStore(mt.Client, "walletauth")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "walletauth.issuers", mtest.FirstBatch))

		_, err := s.FindIssuerByWallet(ctx, "0xabc")
		assert.ErrorIs(mt, err, ports.ErrNotFound)
	})

	mt.Run("transition active", func(mt *mtest.T) {
		s := NewMongoStore(mt.Client, "walletauth")
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "walletauth.tokens", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "rec-1"},
				{Key: "token", Value: "refresh-1"},
				{Key: "type", Value: string(core.TokenTypeRefresh)},
				{Key: "issuerId", Value: "issuer-1"},
				{Key: "status", Value: string(core.TokenStatusActive)},
				{Key: "createdAt", Value: now},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		next, err := s.TransitionActive(ctx, "refresh-1", core.TokenTypeRefresh, core.RotateTo("refresh-2", now))
		require.NoError(mt, err)
		assert.Equal(mt, core.TokenStatusRotated, next.Status)
		assert.Equal(mt, "refresh-2", next.RotatedToToken)
	})

	mt.Run("transition lost race", func(mt *mtest.T) {
		s := NewMongoStore(mt.Client, "walletauth")
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "walletauth.tokens", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "rec-1"},
				{Key: "token", Value: "refresh-1"},
				{Key: "type", Value: string(core.TokenTypeRefresh)},
				{Key: "status", Value: string(core.TokenStatusActive)},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		_, err := s.TransitionActive(ctx, "refresh-1", core.TokenTypeRefresh, core.RevokeAt(now))
		assert.ErrorIs(mt, err, ports.ErrNotFound)
	})

	mt.Run("revoke all active", func(mt *mtest.T) {
		s := NewMongoStore(mt.Client, "walletauth")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}))

		n, err := s.RevokeAllActive(ctx, "issuer-1", now)
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})

	mt.Run("update last login missing issuer", func(mt *mtest.T) {
		s := NewMongoStore(mt.Client, "walletauth")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := s.UpdateLastLogin(ctx, "missing", core.LoginInfo{At: now})
		assert.ErrorIs(mt, err, ports.ErrNotFound)
	})
}
