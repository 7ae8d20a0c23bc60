package commission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
	"github.com/daviskamau/learnhub-backend/pkg/enums"
)

func setupCommissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  referral_code TEXT NOT NULL UNIQUE,
  referred_by_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	commissions := `
CREATE TABLE IF NOT EXISTS commission_transactions (
  id TEXT PRIMARY KEY,
  beneficiary_user_id TEXT NOT NULL,
  source_user_id TEXT NOT NULL,
  source_purchase_id TEXT NOT NULL UNIQUE,
  course_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  commission_rate REAL NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(usersTable).Error)
	require.NoError(t, db.Exec(commissions).Error)
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, referredBy *uuid.UUID) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		Name:         "Test User",
		ReferralCode: uuid.NewString()[:8],
		ReferredByID: referredBy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func completedPurchase(buyerID uuid.UUID, amountCents int64) *models.Purchase {
	now := time.Now().UTC()
	return &models.Purchase{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		CourseID:    uuid.New(),
		Gateway:     enums.PaymentGatewayStripe,
		AmountCents: amountCents,
		Currency:    "USD",
		Status:      enums.PurchaseStatusCompleted,
		PaidAt:      &now,
	}
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		UserRepo: users.NewRepository(db),
		Rate:     0.10,
	})
	require.NoError(t, err)
	return svc
}

func TestService_Award_BooksTenPercent(t *testing.T) {
	db := setupCommissionTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	referrer := newTestUser(t, db, nil)
	buyer := newTestUser(t, db, &referrer.ID)
	purchase := completedPurchase(buyer.ID, 10000)

	txn, err := svc.Award(ctx, db, purchase)
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, int64(1000), txn.AmountCents)
	assert.Equal(t, referrer.ID, txn.BeneficiaryUserID)
	assert.Equal(t, buyer.ID, txn.SourceUserID)
	assert.Equal(t, purchase.ID, txn.SourcePurchaseID)
	assert.Equal(t, 0.10, txn.CommissionRate)
	assert.Equal(t, "USD", txn.Currency)
}

func TestService_Award_NoReferrer(t *testing.T) {
	db := setupCommissionTestDB(t)
	svc := newTestService(t, db)

	buyer := newTestUser(t, db, nil)
	txn, err := svc.Award(context.Background(), db, completedPurchase(buyer.ID, 10000))
	require.NoError(t, err)
	assert.Nil(t, txn)
}

func TestService_Award_SelfReferral(t *testing.T) {
	db := setupCommissionTestDB(t)
	svc := newTestService(t, db)

	buyer := newTestUser(t, db, nil)
	require.NoError(t, db.Model(buyer).Update("referred_by_id", buyer.ID).Error)

	txn, err := svc.Award(context.Background(), db, completedPurchase(buyer.ID, 10000))
	require.NoError(t, err)
	assert.Nil(t, txn)
}

func TestService_Award_IdempotentPerPurchase(t *testing.T) {
	db := setupCommissionTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	referrer := newTestUser(t, db, nil)
	buyer := newTestUser(t, db, &referrer.ID)
	purchase := completedPurchase(buyer.ID, 9900)

	first, err := svc.Award(ctx, db, purchase)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(990), first.AmountCents)

	second, err := svc.Award(ctx, db, purchase)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.CommissionTransaction{}).
		Where("source_purchase_id = ?", purchase.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestService_Award_RequiresCompletedPurchase(t *testing.T) {
	db := setupCommissionTestDB(t)
	svc := newTestService(t, db)

	buyer := newTestUser(t, db, nil)
	purchase := completedPurchase(buyer.ID, 10000)
	purchase.Status = enums.PurchaseStatusPending

	_, err := svc.Award(context.Background(), db, purchase)
	require.Error(t, err)
}
