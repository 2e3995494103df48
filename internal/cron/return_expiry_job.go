package cron

import (
	"context"
	"fmt"

	"github.com/haiminhle/storefront-backend/pkg/logger"
)

// maxSweepRounds bounds one job run when the backlog is deep.
const maxSweepRounds = 20

// returnExpirer is the slice of the return service the sweep uses.
type returnExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ReturnExpiryJobParams configure the return-expiry sweep.
type ReturnExpiryJobParams struct {
	Logger  *logger.Logger
	Returns returnExpirer
}

// NewReturnExpiryJob closes pending return requests whose window lapsed
// without any traffic touching them.
func NewReturnExpiryJob(params ReturnExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Returns == nil {
		return nil, fmt.Errorf("return service required")
	}
	return &returnExpiryJob{logg: params.Logger, returns: params.Returns}, nil
}

type returnExpiryJob struct {
	logg    *logger.Logger
	returns returnExpirer
}

func (j *returnExpiryJob) Name() string { return "return-expiry" }

func (j *returnExpiryJob) Run(ctx context.Context) error {
	total := 0
	for round := 0; round < maxSweepRounds; round++ {
		closed, err := j.returns.ExpireStale(ctx)
		if err != nil {
			return fmt.Errorf("return expiry sweep: %w", err)
		}
		total += closed
		if closed == 0 {
			break
		}
	}
	logCtx := j.logg.WithField(ctx, "requests_closed", total)
	j.logg.Info(logCtx, "return expiry sweep complete")
	return nil
}
