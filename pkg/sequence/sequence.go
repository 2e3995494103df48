package sequence

import (
	"context"
	"fmt"

	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

// Well-known sequence names.
const (
	OrderCodes  = "order_codes"
	ReturnCodes = "return_codes"
)

// Generator hands out gapless-enough unique values from a counter row using a
// single atomic upsert, replacing ad-hoc in-process counters.
type Generator struct {
	db *gorm.DB
}

// NewGenerator builds a Generator bound to the provided DB.
func NewGenerator(db *gorm.DB) (*Generator, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db required for sequence generator")
	}
	return &Generator{db: db}, nil
}

// Next atomically increments the named counter and returns the new value.
func (g *Generator) Next(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "sequence name required")
	}
	var value int64
	err := g.db.WithContext(ctx).Raw(`
		INSERT INTO counters (name, value, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE
		SET value = counters.value + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING value
	`, name).Scan(&value).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment sequence")
	}
	return value, nil
}

// NextOrderCode returns the next order code, e.g. ORD-000042.
func (g *Generator) NextOrderCode(ctx context.Context) (string, error) {
	value, err := g.Next(ctx, OrderCodes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%06d", value), nil
}

// NextReturnCode returns the next return request code, e.g. RR-000007.
func (g *Generator) NextReturnCode(ctx context.Context) (string, error) {
	value, err := g.Next(ctx, ReturnCodes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RR-%06d", value), nil
}
