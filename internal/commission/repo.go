package commission

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/pkg/db/models"
)

// Repository manages persistence for commission ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.CommissionTransaction) error
	FindBySourcePurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.CommissionTransaction, error)
	ListByBeneficiary(ctx context.Context, userID uuid.UUID) ([]models.CommissionTransaction, error)
	SumByBeneficiary(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.CommissionTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindBySourcePurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.CommissionTransaction, error) {
	var txn models.CommissionTransaction
	err := r.db.WithContext(ctx).First(&txn, "source_purchase_id = ?", purchaseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListByBeneficiary(ctx context.Context, userID uuid.UUID) ([]models.CommissionTransaction, error) {
	var rows []models.CommissionTransaction
	if err := r.db.WithContext(ctx).
		Where("beneficiary_user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SumByBeneficiary(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("beneficiary_user_id = ?", userID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
