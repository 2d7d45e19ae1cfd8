package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	issuersCollection = "issuers"
	scoresCollection  = "scores"
	tokensCollection  = "tokens"
)

// MongoStore implements the issuer and token repositories on MongoDB.
// Issuer creation uses a multi-document transaction, so the deployment must be
// a replica set.
type MongoStore struct {
	client  *mongo.Client
	issuers *mongo.Collection
	scores  *mongo.Collection
	tokens  *mongo.Collection
}

var (
	_ ports.IssuerRepository = (*MongoStore)(nil)
	_ ports.TokenRepository  = (*MongoStore)(nil)
)

// NewMongoStore creates a store over the given database
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:  client,
		issuers: db.Collection(issuersCollection),
		scores:  db.Collection(scoresCollection),
		tokens:  db.Collection(tokensCollection),
	}
}

// EnsureIndexes creates the uniqueness constraints the repositories rely on
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.issuers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "primaryWallet", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create issuer index: %w", err)
	}
	if _, err := s.scores.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issuerId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create score index: %w", err)
	}
	if _, err := s.tokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "issuerId", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create token indexes: %w", err)
	}
	return nil
}

type walletLinkDoc struct {
	Network string `bson:"network"`
	Address string `bson:"address"`
}

type socialLinkDoc struct {
	Provider string `bson:"provider"`
	SocialID string `bson:"socialId"`
}

type issuerDoc struct {
	ID                 string               `bson:"_id"`
	PrimaryWallet      string               `bson:"primaryWallet"`
	Bio                string               `bson:"bio"`
	Avatar             string               `bson:"avatar"`
	Website            string               `bson:"website"`
	StakedAmount       primitive.Decimal128 `bson:"stakedAmount"`
	WalletLinks        []walletLinkDoc      `bson:"walletLinks"`
	SocialLinks        []socialLinkDoc      `bson:"socialLinks"`
	Verified           bool                 `bson:"verified"`
	LastLoginAt        *time.Time           `bson:"lastLoginAt,omitempty"`
	LastLoginIP        string               `bson:"lastLoginIP,omitempty"`
	LastLoginUserAgent string               `bson:"lastLoginUserAgent,omitempty"`
	CreatedAt          time.Time            `bson:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt"`
}

type scoreDoc struct {
	IssuerID   string    `bson:"issuerId"`
	TotalScore int64     `bson:"totalScore"`
	Staking    int64     `bson:"staking"`
	Activity   int64     `bson:"activity"`
	Social     int64     `bson:"social"`
	Reputation int64     `bson:"reputation"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

type tokenDoc struct {
	ID             string     `bson:"_id"`
	Token          string     `bson:"token"`
	Type           string     `bson:"type"`
	IssuerID       string     `bson:"issuerId"`
	Status         string     `bson:"status"`
	CreatedAt      time.Time  `bson:"createdAt"`
	ExpiresAt      time.Time  `bson:"expiresAt"`
	RevokedAt      *time.Time `bson:"revokedAt,omitempty"`
	RotatedToToken string     `bson:"rotatedToToken,omitempty"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
}

func toIssuerDoc(i *core.Issuer) (issuerDoc, error) {
	staked, err := primitive.ParseDecimal128(i.StakedAmount.String())
	if err != nil {
		return issuerDoc{}, fmt.Errorf("invalid staked amount: %w", err)
	}
	doc := issuerDoc{
		ID:            i.ID,
		PrimaryWallet: i.PrimaryWallet,
		Bio:           i.Bio,
		Avatar:        i.Avatar,
		Website:       i.Website,
		StakedAmount:  staked,
		WalletLinks:   make([]walletLinkDoc, 0, len(i.WalletLinks)),
		SocialLinks:   make([]socialLinkDoc, 0, len(i.SocialLinks)),
		Verified:      i.Verified,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
	for _, l := range i.WalletLinks {
		doc.WalletLinks = append(doc.WalletLinks, walletLinkDoc{Network: l.Network, Address: l.Address})
	}
	for _, l := range i.SocialLinks {
		doc.SocialLinks = append(doc.SocialLinks, socialLinkDoc{Provider: l.Provider, SocialID: l.SocialID})
	}
	if !i.LastLogin.At.IsZero() {
		at := i.LastLogin.At
		doc.LastLoginAt = &at
		doc.LastLoginIP = i.LastLogin.IP
		doc.LastLoginUserAgent = i.LastLogin.UserAgent
	}
	return doc, nil
}

func (d issuerDoc) issuer() (*core.Issuer, error) {
	staked := decimal.Zero
	if s := d.StakedAmount.String(); s != "" {
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid staked amount %q: %w", s, err)
		}
		staked = parsed
	}
	i := &core.Issuer{
		ID:            d.ID,
		PrimaryWallet: d.PrimaryWallet,
		Bio:           d.Bio,
		Avatar:        d.Avatar,
		Website:       d.Website,
		StakedAmount:  staked,
		WalletLinks:   make([]core.WalletLink, 0, len(d.WalletLinks)),
		SocialLinks:   make([]core.SocialLink, 0, len(d.SocialLinks)),
		Verified:      d.Verified,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, l := range d.WalletLinks {
		i.WalletLinks = append(i.WalletLinks, core.WalletLink{Network: l.Network, Address: l.Address})
	}
	for _, l := range d.SocialLinks {
		i.SocialLinks = append(i.SocialLinks, core.SocialLink{Provider: l.Provider, SocialID: l.SocialID})
	}
	if d.LastLoginAt != nil {
		i.LastLogin = core.LoginInfo{At: *d.LastLoginAt, IP: d.LastLoginIP, UserAgent: d.LastLoginUserAgent}
	}
	return i, nil
}

func toTokenDoc(r *core.TokenRecord) tokenDoc {
	return tokenDoc{
		ID:             r.ID,
		Token:          r.Token,
		Type:           string(r.Type),
		IssuerID:       r.IssuerID,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		RevokedAt:      r.RevokedAt,
		RotatedToToken: r.RotatedToToken,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (d tokenDoc) record() core.TokenRecord {
	return core.TokenRecord{
		ID:             d.ID,
		Token:          d.Token,
		Type:           core.TokenType(d.Type),
		IssuerID:       d.IssuerID,
		Status:         core.TokenStatus(d.Status),
		CreatedAt:      d.CreatedAt,
		ExpiresAt:      d.ExpiresAt,
		RevokedAt:      d.RevokedAt,
		RotatedToToken: d.RotatedToToken,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (s *MongoStore) findIssuer(ctx context.Context, filter bson.M) (*core.Issuer, error) {
	var doc issuerDoc
	err := s.issuers.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find issuer: %w", err)
	}
	return doc.issuer()
}

func (s *MongoStore) FindIssuerByID(ctx context.Context, id string) (*core.Issuer, error) {
	return s.findIssuer(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindIssuerByWallet(ctx context.Context, primaryWallet string) (*core.Issuer, error) {
	return s.findIssuer(ctx, bson.M{"primaryWallet": primaryWallet})
}

func (s *MongoStore) CreateIssuerWithScore(ctx context.Context, issuer *core.Issuer, score *core.Score) error {
	doc, err := toIssuerDoc(issuer)
	if err != nil {
		return err
	}
	sdoc := scoreDoc{
		IssuerID:   score.IssuerID,
		TotalScore: score.TotalScore,
		Staking:    score.Breakdown.Staking,
		Activity:   score.Breakdown.Activity,
		Social:     score.Breakdown.Social,
		Reputation: score.Breakdown.Reputation,
		CreatedAt:  score.CreatedAt,
		UpdatedAt:  score.UpdatedAt,
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.issuers.InsertOne(sc, doc); err != nil {
			return nil, err
		}
		if _, err := s.scores.InsertOne(sc, sdoc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if mongo.IsDuplicateKeyError(err) {
		return ports.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create issuer: %w", err)
	}
	return nil
}

func (s *MongoStore) UpdateLastLogin(ctx context.Context, issuerID string, login core.LoginInfo) error {
	res, err := s.issuers.UpdateOne(ctx, bson.M{"_id": issuerID}, bson.M{"$set": bson.M{
		"lastLoginAt":        login.At,
		"lastLoginIP":        login.IP,
		"lastLoginUserAgent": login.UserAgent,
		"updatedAt":          login.At,
	}})
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *MongoStore) FindScore(ctx context.Context, issuerID string) (*core.Score, error) {
	var doc scoreDoc
	err := s.scores.FindOne(ctx, bson.M{"issuerId": issuerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find score: %w", err)
	}
	return &core.Score{
		IssuerID:   doc.IssuerID,
		TotalScore: doc.TotalScore,
		Breakdown: core.ScoreBreakdown{
			Staking:    doc.Staking,
			Activity:   doc.Activity,
			Social:     doc.Social,
			Reputation: doc.Reputation,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) InsertTokens(ctx context.Context, records ...*core.TokenRecord) error {
	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, toTokenDoc(r))
	}
	if _, err := s.tokens.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("failed to insert tokens: %w", err)
	}
	return nil
}

func activeFilter(token string, tokenType core.TokenType) bson.M {
	return bson.M{
		"token":  token,
		"type":   string(tokenType),
		"status": string(core.TokenStatusActive),
	}
}

func (s *MongoStore) FindActiveToken(ctx context.Context, token string, tokenType core.TokenType) (*core.TokenRecord, error) {
	var doc tokenDoc
	err := s.tokens.FindOne(ctx, activeFilter(token, tokenType)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	r := doc.record()
	return &r, nil
}

func (s *MongoStore) TransitionActive(ctx context.Context, token string, tokenType core.TokenType, transition core.Transition) (*core.TokenRecord, error) {
	current, err := s.FindActiveToken(ctx, token, tokenType)
	if err != nil {
		return nil, err
	}
	next, err := transition(*current)
	if err != nil {
		return nil, err
	}

	// conditional on the status read above, so only one concurrent caller matches
	res, err := s.tokens.UpdateOne(ctx,
		bson.M{"_id": current.ID, "status": string(core.TokenStatusActive)},
		bson.M{"$set": bson.M{
			"status":         string(next.Status),
			"revokedAt":      next.RevokedAt,
			"rotatedToToken": next.RotatedToToken,
			"updatedAt":      next.UpdatedAt,
		}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update token: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ports.ErrNotFound
	}
	return &next, nil
}

func (s *MongoStore) RevokeAllActive(ctx context.Context, issuerID string, at time.Time) (int64, error) {
	res, err := s.tokens.UpdateMany(ctx,
		bson.M{"issuerId": issuerID, "status": string(core.TokenStatusActive)},
		bson.M{"$set": bson.M{
			"status":    string(core.TokenStatusRevoked),
			"revokedAt": at,
			"updatedAt": at,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return res.ModifiedCount, nil
}
