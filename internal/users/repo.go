package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/pkg/db/models"
)

// MaxUplineHops bounds referral-chain walks. The referral tree is written
// by the registration collaborator and could in principle contain a cycle;
// the bound turns that into a truncated walk instead of an infinite loop.
const MaxUplineHops = 10

// Repository manages persistence for the local user projection.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByReferralCode(ctx context.Context, code string) (*models.User, error)
	ListDirectReferrals(ctx context.Context, userID uuid.UUID) ([]models.User, error)
	// Upline returns the referral chain starting from the user's direct
	// referrer, walking at most maxHops levels up.
	Upline(ctx context.Context, userID uuid.UUID, maxHops int) ([]models.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a user repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "referral_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListDirectReferrals(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	var rows []models.User
	if err := r.db.WithContext(ctx).
		Where("referred_by_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Upline(ctx context.Context, userID uuid.UUID, maxHops int) ([]models.User, error) {
	if maxHops <= 0 || maxHops > MaxUplineHops {
		maxHops = MaxUplineHops
	}

	chain := make([]models.User, 0, maxHops)
	seen := map[uuid.UUID]struct{}{userID: {}}

	current, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	for hop := 0; hop < maxHops; hop++ {
		if current == nil || current.ReferredByID == nil {
			break
		}
		next, err := r.FindByID(ctx, *current.ReferredByID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		if _, dup := seen[next.ID]; dup {
			break
		}
		seen[next.ID] = struct{}{}
		chain = append(chain, *next)
		current = next
	}
	return chain, nil
}
