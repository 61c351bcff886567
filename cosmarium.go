package cosmarium

import (
	"context"

	"github.com/aretw0/cosmarium/pkg/app"
)

// Version of the core reported to plugins and by the CLI.
const Version = app.Version

type (
	// Application is the composition root. See pkg/app.
	Application = app.Application

	// Option configures an Application.
	Option = app.Option
)

var (
	WithLogger     = app.WithLogger
	WithConfigPath = app.WithConfigPath
	WithConfig     = app.WithConfig
	WithStateDir   = app.WithStateDir
	WithDataDir    = app.WithDataDir
	WithLayoutDir  = app.WithLayoutDir
	WithFileWatch  = app.WithFileWatch
)

// New returns an Application that still needs Initialize.
func New(opts ...Option) *Application {
	return app.New(opts...)
}

// Open creates and initializes an Application.
func Open(ctx context.Context, opts ...Option) (*Application, error) {
	a := app.New(opts...)
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
