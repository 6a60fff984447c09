// Package app assembles a session from configuration.
//
// A Stack owns the long-lived pieces shared by every session in a process
// (resolver, environment overlay, journal, logger and metrics) and hands out
// fresh bridges and controllers. The native host builds exactly one
// controller; the sidecar builds one per websocket connection.
//
// Example Usage:
//
//	stack, err := app.New(ctx, cfg, logger, metrics)
//	if err != nil {
//	    return err
//	}
//	defer stack.Close()
//	ctrl := stack.Controller(stack.Bridge(), surf, stack.Geometry())
//	res, err := ctrl.Run(ctx)
package app
