package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"

	"github.com/CuriousLearner/phone-verify/core"
)

type PurgeStaleVerificationsArgs struct {
	RetentionHours int `json:"retention_hours,omitempty"`
	BatchSize      int `json:"batch_size,omitempty"`
}

func (PurgeStaleVerificationsArgs) Kind() string { return "phoneverify_purge_stale_verifications" }

func (args PurgeStaleVerificationsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Hour,
			ByQueue:  true,
		},
	}
}

// PurgeStaleVerificationsWorker deletes verification records that were
// created longer ago than the retention window. Expired records are kept
// around for a while so verify calls can report "expired" rather than
// "invalid"; this worker is the retention boundary after which they go away
// entirely.
type PurgeStaleVerificationsWorker struct {
	river.WorkerDefaults[PurgeStaleVerificationsArgs]
	svc *core.Service
}

func NewPurgeStaleVerificationsWorker(svc *core.Service) *PurgeStaleVerificationsWorker {
	return &PurgeStaleVerificationsWorker{svc: svc}
}

func (w *PurgeStaleVerificationsWorker) Timeout(*river.Job[PurgeStaleVerificationsArgs]) time.Duration {
	return 5 * time.Minute
}

func (w *PurgeStaleVerificationsWorker) Work(ctx context.Context, job *river.Job[PurgeStaleVerificationsArgs]) error {
	if w == nil || w.svc == nil {
		return errors.New("phoneverify purge: service not configured")
	}
	retention := job.Args.RetentionHours
	if retention <= 0 {
		retention = 24
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = 500
	}
	_, err := w.svc.PurgeStale(ctx, time.Duration(retention)*time.Hour, batch)
	return err
}
