package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haiminhle/storefront-backend/pkg/db/models"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

// Service maintains per-customer point balances. Accrual and clawback are
// best-effort side effects of the order lifecycle; the one hard rule is that
// a balance never goes negative.
type Service interface {
	AddPoints(ctx context.Context, userID uuid.UUID, points int, reference string) error
	// DeductPoints removes up to points from the balance, flooring at zero.
	DeductPoints(ctx context.Context, userID uuid.UUID, points int, reference string) error
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

type serviceImpl struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewService wires the loyalty point ledger.
func NewService(db *gorm.DB, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("loyalty: db is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("loyalty: logger is required")
	}
	return &serviceImpl{db: db, logg: logg}, nil
}

func (s *serviceImpl) AddPoints(ctx context.Context, userID uuid.UUID, points int, reference string) error {
	if points <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance": gorm.Expr("loyalty_accounts.balance + ?", points),
		}),
	}).Create(&models.LoyaltyAccount{UserID: userID, Balance: points}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accruing points")
	}
	s.logg.Info(ctx, fmt.Sprintf("accrued %d points for %s (%s)", points, userID, reference))
	return nil
}

func (s *serviceImpl) DeductPoints(ctx context.Context, userID uuid.UUID, points int, reference string) error {
	if points <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	// Single statement so the floor holds under concurrent deductions.
	res := s.db.WithContext(ctx).Model(&models.LoyaltyAccount{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("CASE WHEN balance > ? THEN balance - ? ELSE 0 END", points, points))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deducting points")
	}
	if res.RowsAffected == 0 {
		// No account means nothing was ever accrued; nothing to claw back.
		return nil
	}
	s.logg.Info(ctx, fmt.Sprintf("deducted up to %d points for %s (%s)", points, userID, reference))
	return nil
}

func (s *serviceImpl) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var account models.LoyaltyAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading loyalty account")
	}
	return account.Balance, nil
}
