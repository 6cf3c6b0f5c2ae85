package lib

import (
	"context"
	"sync"

	"github.com/covalent-labs/teams-relay/lib/logger"
	"github.com/gravitational/trace"
)

// ServiceJob is a long-running job with a readiness status and a final
// result.
type ServiceJob interface {
	// DoJob executes the job function.
	DoJob(context.Context) error
	// IsReady indicates whether the job is in the "ready" state.
	IsReady() bool
	// SetReady sets the job readiness status.
	SetReady(ready bool)
	// WaitReady blocks until the readiness status is set or ctx is done.
	WaitReady(ctx context.Context) (bool, error)
	// Done returns a channel closed once the job is completed.
	Done() <-chan struct{}
	// Err returns the error the job finished with.
	Err() error
}

type serviceJob struct {
	do func(context.Context) error

	mu      sync.Mutex
	ready   bool
	readyCh chan struct{}
	doneCh  chan struct{}
	err     error
}

// NewServiceJob wraps a function into a ServiceJob.
func NewServiceJob(fn func(ctx context.Context) error) ServiceJob {
	return &serviceJob{
		do:      fn,
		readyCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (job *serviceJob) DoJob(ctx context.Context) error {
	err := job.do(ctx)

	job.mu.Lock()
	job.err = err
	job.mu.Unlock()

	job.SetReady(false)
	close(job.doneCh)
	return err
}

func (job *serviceJob) IsReady() bool {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.ready
}

func (job *serviceJob) SetReady(ready bool) {
	job.mu.Lock()
	defer job.mu.Unlock()

	job.ready = ready
	select {
	case <-job.readyCh:
	default:
		close(job.readyCh)
	}
}

func (job *serviceJob) WaitReady(ctx context.Context) (bool, error) {
	select {
	case <-job.readyCh:
		return job.IsReady(), nil
	case <-ctx.Done():
		return false, trace.Wrap(ctx.Err())
	}
}

func (job *serviceJob) Done() <-chan struct{} {
	return job.doneCh
}

func (job *serviceJob) Err() error {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.err
}

// SpawnJob runs a service job in the process context.
func (p *Process) SpawnJob(job ServiceJob) {
	p.Spawn(func(ctx context.Context) {
		_ = job.DoJob(ctx)
	})
}

// SpawnCriticalJob runs a service job whose failure terminates the entire
// process.
func (p *Process) SpawnCriticalJob(job ServiceJob) {
	p.Spawn(func(ctx context.Context) {
		err := job.DoJob(ctx)
		if err != nil && !IsCanceled(err) {
			log := logger.Get(ctx)
			log.WithError(err).Error("Critical job failed")
			log.Debugf("%v", trace.DebugReport(err))
		}
		p.Terminate()
	})
}
