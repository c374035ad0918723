package cron

import (
	"context"
	"fmt"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/outbox"
)

const OutboxSweepJobName = "outbox-sweep"

type identityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

type outboxSweeper interface {
	Sweep(ctx context.Context, identity string) (outbox.SweepResult, error)
}

type OutboxSweepJobParams struct {
	Logger     *logger.Logger
	Identities identityProvider
	Outbox     outboxSweeper
}

// OutboxSweepJob retries due mutations for the signed-in identity.
type OutboxSweepJob struct {
	logg       *logger.Logger
	identities identityProvider
	outbox     outboxSweeper
}

func NewOutboxSweepJob(params OutboxSweepJobParams) (*OutboxSweepJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Identities == nil {
		return nil, fmt.Errorf("identity provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	return &OutboxSweepJob{
		logg:       params.Logger,
		identities: params.Identities,
		outbox:     params.Outbox,
	}, nil
}

func (j *OutboxSweepJob) Name() string { return OutboxSweepJobName }

func (j *OutboxSweepJob) Run(ctx context.Context) error {
	identity, err := j.identities.CurrentIdentity(ctx)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotAuthenticated) {
		return nil
	}
	if err != nil {
		return err
	}
	ctx = j.logg.WithIdentity(ctx, identity)
	result, err := j.outbox.Sweep(ctx, identity)
	if err != nil {
		return fmt.Errorf("sweep outbox: %w", err)
	}
	if result.Selected > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"selected": result.Selected,
			"sent":     result.Sent,
			"requeued": result.Requeued,
			"failed":   result.Failed,
			"skipped":  result.Skipped,
		}), "outbox sweep finished")
	}
	return nil
}
