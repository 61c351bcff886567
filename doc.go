// Package cosmarium is the entry point to the Cosmarium writing core.
//
// An Application composes the pieces a writing tool needs: an event bus,
// a plugin manager with shared state, project and document managers,
// persisted configuration, session and layout, and a background task
// queue whose results are applied on the frame goroutine.
//
// The host drives the application by calling Update once per frame:
//
//	a, err := cosmarium.Open(ctx, cosmarium.WithConfigPath(path))
//	if err != nil {
//		return err
//	}
//	defer a.Shutdown(ctx)
//
//	for range ticker.C {
//		if err := a.Update(ctx); err != nil {
//			return err
//		}
//	}
//
// The subpackages can be used on their own. pkg/document and pkg/project
// manage files without an Application, and pkg/plugin defines what a
// plugin sees of the host.
package cosmarium
