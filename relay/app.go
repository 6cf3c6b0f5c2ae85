package main

import (
	"context"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"

	"github.com/covalent-labs/teams-relay/lib"
	"github.com/covalent-labs/teams-relay/msapi"
)

// App contains global application state.
type App struct {
	conf Config

	apiServer *APIServer
	mainJob   lib.ServiceJob

	*lib.Process
}

// NewApp initializes a new teams-relay app and returns it.
func NewApp(conf Config) (*App, error) {
	app := &App{conf: conf}
	app.mainJob = lib.NewServiceJob(app.run)
	return app, nil
}

// Run initializes and runs the relay HTTP server.
func (a *App) Run(ctx context.Context) error {
	a.Process = lib.NewProcess(ctx)
	a.SpawnCriticalJob(a.mainJob)
	<-a.Process.Done()
	return trace.Wrap(a.mainJob.Err())
}

// WaitReady waits for the HTTP service to start up.
func (a *App) WaitReady(ctx context.Context) (bool, error) {
	return a.mainJob.WaitReady(ctx)
}

func (a *App) run(ctx context.Context) (err error) {
	log.Infof("Starting %s %s:%s", appName, Version, Gitref)

	a.apiServer, err = NewAPIServer(a.conf, msapi.NewClient(a.conf.MSAPI))
	if err != nil {
		return trace.Wrap(err)
	}

	if err = a.apiServer.EnsureCert(); err != nil {
		return trace.Wrap(err)
	}

	httpJob := a.apiServer.ServiceJob()
	a.SpawnCriticalJob(httpJob)
	httpOk, err := httpJob.WaitReady(ctx)
	if err != nil {
		return trace.Wrap(err)
	}

	a.mainJob.SetReady(httpOk)

	<-httpJob.Done()
	return trace.Wrap(httpJob.Err())
}
