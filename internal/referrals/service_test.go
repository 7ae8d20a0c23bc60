package referrals

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/daviskamau/learnhub-backend/internal/commission"
	"github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/pkg/db/models"
)

func setupReferralsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  referral_code TEXT NOT NULL UNIQUE,
  referred_by_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS enrollments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  purchase_id TEXT,
  payment_status TEXT NOT NULL DEFAULT 'free',
  completion_percentage INTEGER NOT NULL DEFAULT 0,
  completed_lesson_ids TEXT NOT NULL DEFAULT '{}',
  current_lesson_id TEXT,
  last_accessed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, course_id)
);`, `
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
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newReferralsService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(db),
		CommissionRepo: commission.NewRepository(db),
		EnrollmentRepo: enrollments.NewRepository(db),
	})
	require.NoError(t, err)
	return svc
}

func seedReferralUser(t *testing.T, db *gorm.DB, name string, referredBy *uuid.UUID) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		Name:         name,
		ReferralCode: uuid.NewString()[:8],
		ReferredByID: referredBy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestService_Summary(t *testing.T) {
	db := setupReferralsTestDB(t)
	svc := newReferralsService(t, db)
	ctx := context.Background()

	grandparent := seedReferralUser(t, db, "Grandparent", nil)
	owner := seedReferralUser(t, db, "Owner", &grandparent.ID)
	childA := seedReferralUser(t, db, "Child A", &owner.ID)
	childB := seedReferralUser(t, db, "Child B", &owner.ID)

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&models.Enrollment{
			ID:       uuid.New(),
			UserID:   childA.ID,
			CourseID: uuid.New(),
		}).Error)
	}

	require.NoError(t, db.Create(&models.CommissionTransaction{
		ID:                uuid.New(),
		BeneficiaryUserID: owner.ID,
		SourceUserID:      childA.ID,
		SourcePurchaseID:  uuid.New(),
		CourseID:          uuid.New(),
		AmountCents:       990,
		Currency:          "USD",
		CommissionRate:    0.10,
	}).Error)
	require.NoError(t, db.Create(&models.CommissionTransaction{
		ID:                uuid.New(),
		BeneficiaryUserID: owner.ID,
		SourceUserID:      childB.ID,
		SourcePurchaseID:  uuid.New(),
		CourseID:          uuid.New(),
		AmountCents:       1000,
		Currency:          "USD",
		CommissionRate:    0.10,
	}).Error)

	summary, err := svc.Summary(ctx, owner.ID)
	require.NoError(t, err)

	assert.Equal(t, owner.ReferralCode, summary.ReferralCode)
	require.Len(t, summary.DirectReferrals, 2)
	require.Len(t, summary.Upline, 1)
	assert.Equal(t, grandparent.ID, summary.Upline[0].UserID)
	assert.Equal(t, int64(1990), summary.TotalCommissionCents)
	assert.Len(t, summary.Commissions, 2)

	byID := map[uuid.UUID]DirectReferral{}
	for _, ref := range summary.DirectReferrals {
		byID[ref.UserID] = ref
	}
	assert.Equal(t, int64(2), byID[childA.ID].EnrollmentCount)
	assert.Equal(t, int64(0), byID[childB.ID].EnrollmentCount)
}

func TestService_Summary_UnknownUser(t *testing.T) {
	db := setupReferralsTestDB(t)
	svc := newReferralsService(t, db)

	_, err := svc.Summary(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestRepository_Upline_BoundsCycles(t *testing.T) {
	db := setupReferralsTestDB(t)
	repo := users.NewRepository(db)
	ctx := context.Background()

	a := seedReferralUser(t, db, "A", nil)
	b := seedReferralUser(t, db, "B", &a.ID)
	// Introduce a cycle a -> b -> a.
	require.NoError(t, db.Model(a).Update("referred_by_id", b.ID).Error)

	chain, err := repo.Upline(ctx, b.ID, users.MaxUplineHops)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chain), users.MaxUplineHops)
	assert.Len(t, chain, 1)
}
