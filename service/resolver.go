package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// Resolution is an issuer with its current total score
type Resolution struct {
	Issuer *core.Issuer
	Score  int64
}

// IssuerResolver finds the issuer for a wallet, creating it on first login
type IssuerResolver struct {
	repo ports.IssuerRepository
	now  func() time.Time
}

// NewIssuerResolver returns a resolver backed by repo
func NewIssuerResolver(repo ports.IssuerRepository) *IssuerResolver {
	return &IssuerResolver{repo: repo, now: time.Now}
}

// Resolve is idempotent: concurrent calls for a new wallet create one issuer
// and one score, losers of the insert race re-read the winner's record.
func (r *IssuerResolver) Resolve(ctx context.Context, address string) (*Resolution, error) {
	wallet := core.NormalizeAddress(address)
	if wallet == "" {
		return nil, core.ErrInvalidAddress
	}

	issuer, err := r.repo.FindIssuerByWallet(ctx, wallet)
	if errors.Is(err, ports.ErrNotFound) {
		issuer, err = r.create(ctx, wallet)
	}
	if err != nil {
		return nil, err
	}

	score, err := r.score(ctx, issuer.ID)
	if err != nil {
		return nil, err
	}

	return &Resolution{Issuer: issuer, Score: score}, nil
}

func (r *IssuerResolver) create(ctx context.Context, wallet string) (*core.Issuer, error) {
	now := r.now()
	issuer := core.NewIssuer(uuid.New().String(), wallet, now)

	err := r.repo.CreateIssuerWithScore(ctx, issuer, core.NewScore(issuer.ID, now))
	if errors.Is(err, ports.ErrDuplicate) {
		return r.repo.FindIssuerByWallet(ctx, wallet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create issuer: %w", err)
	}
	return issuer, nil
}

// Lookup returns an existing issuer by id with its score
func (r *IssuerResolver) Lookup(ctx context.Context, issuerID string) (*Resolution, error) {
	issuer, err := r.repo.FindIssuerByID(ctx, issuerID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, core.ErrIssuerNotFound
	}
	if err != nil {
		return nil, err
	}

	score, err := r.score(ctx, issuer.ID)
	if err != nil {
		return nil, err
	}
	return &Resolution{Issuer: issuer, Score: score}, nil
}

// score defaults to zero when the record is missing
func (r *IssuerResolver) score(ctx context.Context, issuerID string) (int64, error) {
	score, err := r.repo.FindScore(ctx, issuerID)
	if errors.Is(err, ports.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read score: %w", err)
	}
	return score.TotalScore, nil
}
