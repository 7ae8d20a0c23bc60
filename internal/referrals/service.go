// Package referrals assembles the referral dashboard: code, direct
// referrals, upline and booked commission history.
package referrals

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/daviskamau/learnhub-backend/internal/commission"
	"github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/daviskamau/learnhub-backend/pkg/errors"
)

// DirectReferral is one user the owner referred, with activity counts.
type DirectReferral struct {
	UserID          uuid.UUID `json:"userId"`
	Name            string    `json:"name"`
	EnrollmentCount int64     `json:"enrollmentCount"`
	JoinedAt        time.Time `json:"joinedAt"`
}

// UplineEntry is one ancestor in the referral chain, for display only.
type UplineEntry struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Hop    int       `json:"hop"`
}

// Summary is the referral dashboard payload for one user.
type Summary struct {
	ReferralCode         string                         `json:"referralCode"`
	DirectReferrals      []DirectReferral               `json:"directReferrals"`
	Upline               []UplineEntry                  `json:"upline"`
	TotalCommissionCents int64                          `json:"totalCommissionCents"`
	Commissions          []models.CommissionTransaction `json:"commissions"`
}

type ServiceParams struct {
	UserRepo       users.Repository
	CommissionRepo commission.Repository
	EnrollmentRepo enrollments.Repository
}

type Service struct {
	users       users.Repository
	commissions commission.Repository
	enrollments enrollments.Repository
}

func NewService(params ServiceParams) (*Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.CommissionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repo required")
	}
	if params.EnrollmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enrollment repo required")
	}
	return &Service{
		users:       params.UserRepo,
		commissions: params.CommissionRepo,
		enrollments: params.EnrollmentRepo,
	}, nil
}

// Summary builds the dashboard for the given user.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	owner, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if owner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	referred, err := s.users.ListDirectReferrals(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list referrals")
	}

	direct := make([]DirectReferral, 0, len(referred))
	for _, user := range referred {
		count, err := s.enrollments.CountByUser(ctx, user.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count enrollments")
		}
		direct = append(direct, DirectReferral{
			UserID:          user.ID,
			Name:            user.Name,
			EnrollmentCount: count,
			JoinedAt:        user.CreatedAt,
		})
	}

	chain, err := s.users.Upline(ctx, userID, users.MaxUplineHops)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk upline")
	}
	upline := make([]UplineEntry, 0, len(chain))
	for i, ancestor := range chain {
		upline = append(upline, UplineEntry{UserID: ancestor.ID, Name: ancestor.Name, Hop: i + 1})
	}

	txns, err := s.commissions.ListByBeneficiary(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}
	total, err := s.commissions.SumByBeneficiary(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum commissions")
	}

	return &Summary{
		ReferralCode:         owner.ReferralCode,
		DirectReferrals:      direct,
		Upline:               upline,
		TotalCommissionCents: total,
		Commissions:          txns,
	}, nil
}
