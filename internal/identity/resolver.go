// Package identity decides whether an incoming resume belongs to a candidate
// we already know, and reconciles the two records when it does. It owns all
// writes to the candidates table.
package identity

import (
	"context"

	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/storage"
)

// MatchTier classifies how confident a resolution hit is.
type MatchTier string

const (
	TierStrong MatchTier = "strong"
	TierWeak   MatchTier = "weak"
	TierNone   MatchTier = "none"
)

// ParsedIdentity carries the identity-bearing fields extracted from a new
// resume. Every field is optional; missing fields just skip their tier.
type ParsedIdentity struct {
	Name           string
	Email          string
	Phone          string
	TextHash       string
	CurrentCompany string
}

// candidateFinder is the slice of the store the resolver needs. Implemented
// by *storage.Store; faked in tests.
type candidateFinder interface {
	FindCandidateByContact(ctx context.Context, email, phone string) (*storage.Candidate, error)
	FindCandidateByTextHash(ctx context.Context, textHash string) (*storage.Candidate, error)
	FindCandidatesByName(ctx context.Context, name string) ([]*storage.Candidate, error)
}

type Resolver struct {
	weakThreshold float64
	log           *zap.Logger
}

func NewResolver(cfg config.DedupSettings, log *zap.Logger) *Resolver {
	return &Resolver{weakThreshold: cfg.WeakSimilarity, log: log}
}

// Resolve finds the existing candidate for an incoming identity, if any.
// Tiers are strictly ordered and the first hit wins:
//
//  1. contact: stored email equals the new email OR stored phone equals the
//     new phone,
//  2. content: an existing resume with the identical text hash,
//  3. name + employer: exact-name candidates ranked by employer-name
//     similarity, accepted only at or above the weak threshold. Name alone
//     never matches.
//
// Must run inside the same transaction as the eventual candidate write, under
// the ingestion advisory lock, so concurrent submissions of the same person
// cannot both see "no match".
func (r *Resolver) Resolve(ctx context.Context, store candidateFinder, id ParsedIdentity) (*storage.Candidate, MatchTier, error) {
	if id.Email != "" || id.Phone != "" {
		c, err := store.FindCandidateByContact(ctx, id.Email, id.Phone)
		if err != nil {
			return nil, TierNone, err
		}
		if c != nil {
			r.log.Debug("resolved by contact", zap.Int64("candidate_id", c.ID))
			return c, TierStrong, nil
		}
	}

	if id.TextHash != "" {
		c, err := store.FindCandidateByTextHash(ctx, id.TextHash)
		if err != nil {
			return nil, TierNone, err
		}
		if c != nil {
			r.log.Debug("resolved by text hash", zap.Int64("candidate_id", c.ID))
			return c, TierStrong, nil
		}
	}

	if id.Name != "" && id.CurrentCompany != "" {
		candidates, err := store.FindCandidatesByName(ctx, id.Name)
		if err != nil {
			return nil, TierNone, err
		}

		var best *storage.Candidate
		bestSim := 0.0
		for _, c := range candidates {
			if c.CurrentCompany == "" {
				continue
			}
			if sim := Ratio(id.CurrentCompany, c.CurrentCompany); sim > bestSim {
				best, bestSim = c, sim
			}
		}
		if best != nil && bestSim >= r.weakThreshold {
			r.log.Debug("resolved by name+employer",
				zap.Int64("candidate_id", best.ID), zap.Float64("similarity", bestSim))
			return best, TierWeak, nil
		}
	}

	return nil, TierNone, nil
}
