package lib

import (
	"context"
	"sync"
)

// Job is a function executed in a process-scoped goroutine.
type Job func(context.Context)

type processKey struct{}

// Process spawns jobs in its own context and waits for their completion
// on shutdown.
type Process struct {
	// doneCh is closed when all the jobs are completed.
	doneCh chan struct{}
	// spawn runs a goroutine in the process context as a job waiting for
	// its completion on shutdown.
	spawn func(Job)
	// terminate signals the process to terminate gracefully.
	terminate func()
	// cancel signals the process to terminate immediately.
	cancel context.CancelFunc

	mu          sync.Mutex
	onTerminate []Job
}

// NewProcess creates a process operating in the given context.
func NewProcess(ctx context.Context) *Process {
	ctx, cancel := context.WithCancel(ctx)
	doneCh := make(chan struct{})
	var jobs sync.WaitGroup
	var once sync.Once

	process := &Process{
		doneCh: doneCh,
		cancel: cancel,
	}
	ctx = context.WithValue(ctx, processKey{}, process)

	jobs.Add(1) // Start the main "job". We have to do it for Wait() not being returned beforehand.
	go func() {
		jobs.Wait()
		close(doneCh)
	}()

	process.terminate = func() {
		once.Do(func() {
			process.mu.Lock()
			callbacks := process.onTerminate
			process.onTerminate = nil
			process.mu.Unlock()
			for _, cb := range callbacks {
				process.spawn(cb)
			}
			jobs.Done() // Stop the main "job".
		})
	}
	process.spawn = func(j Job) {
		jobs.Add(1)
		go func() {
			j(ctx)
			jobs.Done()
		}()
	}

	return process
}

// MustGetProcess returns the process owning the context or panics.
func MustGetProcess(ctx context.Context) *Process {
	process, ok := ctx.Value(processKey{}).(*Process)
	if !ok {
		panic("running out of process context")
	}
	return process
}

// Done returns a channel closed when all the process jobs are completed.
func (p *Process) Done() <-chan struct{} {
	return p.doneCh
}

// Spawn runs a job in the process context.
func (p *Process) Spawn(f Job) {
	if p == nil {
		panic("spawning a job on a nil process")
	}
	select {
	case <-p.doneCh:
		panic("spawning a job on a finished process")
	default:
		p.spawn(f)
	}
}

// OnTerminate registers a callback spawned when the process is signaled
// to terminate.
func (p *Process) OnTerminate(f Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTerminate = append(p.onTerminate, f)
}

// Terminate signals the process to terminate gracefully.
func (p *Process) Terminate() {
	if p == nil {
		return
	}
	p.terminate()
}

// Shutdown terminates the process gracefully waiting for the running jobs
// to complete.
func (p *Process) Shutdown(ctx context.Context) error {
	if p == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	p.terminate()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneCh:
		return nil
	}
}

// Close does a fast (force) process termination.
func (p *Process) Close() {
	if p == nil {
		return
	}
	p.terminate()
	p.cancel()
	<-p.doneCh
}
