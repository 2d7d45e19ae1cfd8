package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletLink is an external wallet linked to an issuer
type WalletLink struct {
	Network string
	Address string
}

// SocialLink is a social identity linked to an issuer
type SocialLink struct {
	Provider string
	SocialID string
}

// LoginInfo is the metadata recorded on every successful login
type LoginInfo struct {
	At        time.Time
	IP        string
	UserAgent string
}

// Issuer is the persistent identity record, unique on PrimaryWallet
type Issuer struct {
	ID            string
	PrimaryWallet string // normalized
	Bio           string
	Avatar        string
	Website       string
	StakedAmount  decimal.Decimal
	WalletLinks   []WalletLink
	SocialLinks   []SocialLink
	Verified      bool
	LastLogin     LoginInfo
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewIssuer returns an issuer with default profile fields
func NewIssuer(id, primaryWallet string, now time.Time) *Issuer {
	return &Issuer{
		ID:            id,
		PrimaryWallet: NormalizeAddress(primaryWallet),
		StakedAmount:  decimal.Zero,
		WalletLinks:   []WalletLink{},
		SocialLinks:   []SocialLink{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// PublicWalletLink is the client view of a WalletLink
type PublicWalletLink struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

// PublicSocialLink is the client view of a SocialLink
type PublicSocialLink struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}

// PublicIssuer is the only issuer shape returned to clients
type PublicIssuer struct {
	ID           string             `json:"id"`
	Address      string             `json:"address"`
	Bio          string             `json:"bio"`
	Avatar       string             `json:"avatar"`
	StakedAmount decimal.Decimal    `json:"stakedAmount"`
	Score        int64              `json:"score"`
	Website      string             `json:"website"`
	WalletLinks  []PublicWalletLink `json:"walletLinks"`
	SocialLinks  []PublicSocialLink `json:"socialLinks"`
}

// Public builds the client view of the issuer
func (i *Issuer) Public(score int64) PublicIssuer {
	wallets := make([]PublicWalletLink, 0, len(i.WalletLinks))
	for _, link := range i.WalletLinks {
		wallets = append(wallets, PublicWalletLink{Network: link.Network, Address: link.Address})
	}
	socials := make([]PublicSocialLink, 0, len(i.SocialLinks))
	for _, link := range i.SocialLinks {
		socials = append(socials, PublicSocialLink{Provider: link.Provider, ProviderID: link.SocialID})
	}
	return PublicIssuer{
		ID:           i.ID,
		Address:      i.PrimaryWallet,
		Bio:          i.Bio,
		Avatar:       i.Avatar,
		StakedAmount: i.StakedAmount,
		Score:        score,
		Website:      i.Website,
		WalletLinks:  wallets,
		SocialLinks:  socials,
	}
}

// ScoreBreakdown holds the per-category components of a score
type ScoreBreakdown struct {
	Staking    int64
	Activity   int64
	Social     int64
	Reputation int64
}

// Score is paired one-to-one with an Issuer and read-only here
type Score struct {
	IssuerID   string
	TotalScore int64
	Breakdown  ScoreBreakdown
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewScore returns the baseline score for a new issuer
func NewScore(issuerID string, now time.Time) *Score {
	return &Score{
		IssuerID:  issuerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
