package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"projectdesk/internal/app"
	"projectdesk/internal/exitcode"
	"projectdesk/internal/logging"
	"projectdesk/internal/service"
	"projectdesk/internal/session"
)

// pushTimeout bounds the wait for the store's auth push after a successful call.
const pushTimeout = 5 * time.Second

// signUpPushWait bounds the wait for the sign-in push after a sign-up. No
// push arrives when the account still needs email confirmation.
const signUpPushWait = time.Second

const notLoggedIn = "not logged in (run: projectdesk login)"

// startClient builds a client over svc and resolves the persisted session.
// One-shot commands load explicitly, so auto-loading is off unless asked for.
func startClient(ctx context.Context, svc service.Service, autoLoad bool) (*app.Client, error) {
	c := app.New(svc, app.Options{Logger: logging.FromContext(ctx), AutoLoad: autoLoad})
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// waitForStatus waits until the session reaches want.
func waitForStatus(ctx context.Context, c *app.Client, want session.Status) (session.State, error) {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	return c.Session.WaitFor(ctx, func(s session.State) bool { return s.Status == want })
}

// awaitSignUp reports whether the session manager saw email signed in
// after a sign-up.
func awaitSignUp(ctx context.Context, c *app.Client, email string) bool {
	ctx, cancel := context.WithTimeout(ctx, signUpPushWait)
	defer cancel()
	_, err := c.Session.WaitFor(ctx, func(s session.State) bool {
		return s.Status == session.Authenticated && s.Session != nil && s.Session.Email == email
	})
	return err == nil
}

// exitCodeFor maps a failure to the CLI exit code: bad input and missing
// records are user errors, credential problems are auth errors, everything
// else is a backend error.
func exitCodeFor(err error) int {
	var (
		se *service.StoreError
		ae *service.AuthError
	)
	switch {
	case errors.As(err, &se):
		switch se.Kind {
		case service.StoreValidation, service.StoreNotFound:
			return exitcode.UserError
		case service.StorePermissionDenied:
			return exitcode.AuthError
		}
		return exitcode.BackendError
	case errors.As(err, &ae):
		switch ae.Kind {
		case service.AuthTransient, service.AuthUnknown:
			return exitcode.BackendError
		}
		return exitcode.AuthError
	}
	return exitcode.BackendError
}

// describe renders err for the user.
func describe(err error) string {
	var (
		se *service.StoreError
		ae *service.AuthError
	)
	switch {
	case errors.As(err, &se) && se.Kind == service.StoreValidation && se.Err != nil:
		return se.Err.Error()
	case errors.As(err, &ae) && ae.Kind == service.AuthNotAuthenticated:
		return notLoggedIn
	case errors.As(err, &ae) && ae.Err == nil:
		return string(ae.Kind)
	}
	return err.Error()
}

// reportError prints err and returns its exit code.
func reportError(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %s\n", describe(err))
	return exitCodeFor(err)
}

// requireLogin reports a missing session.
func requireLogin(c *app.Client, errOut io.Writer) bool {
	if c.SessionState().Status == session.Authenticated {
		return true
	}
	fmt.Fprintln(errOut, "error: "+notLoggedIn)
	return false
}
