// Package authflow captures the identity provider's redirect for clients
// without a browser-hosted app: a loopback HTTP listener receives the
// authorization code, verifies the signed anti-forgery state, and hands the
// code to whoever is waiting on it.
package authflow

import (
	"context"
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ErrCallbackDenied is returned when the provider redirects back with an
// error instead of a code (e.g. the user cancelled the login).
var ErrCallbackDenied = goerrors.New("authorization was denied", goerrors.CategoryAuth).
	WithTextCode("authflow_callback_denied").
	WithCode(goerrors.CodeUnauthorized)

type callbackResult struct {
	code string
	err  error
}

// CallbackListener serves the OAuth redirect URI on the local loopback and
// delivers the authorization code exactly once.
type CallbackListener struct {
	srv    router.Server[*fiber.App]
	app    *fiber.App
	addr   string
	path   string
	states *StateManager

	once    sync.Once
	results chan callbackResult
}

// NewCallbackListener builds a listener for the given redirect URI
// (e.g. "http://127.0.0.1:8484/callback").
func NewCallbackListener(redirectURI string, states *StateManager) (*CallbackListener, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redirect URI")
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	l := &CallbackListener{
		addr:    parsed.Host,
		path:    path,
		states:  states,
		results: make(chan callbackResult, 1),
	}

	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})
		return app
	})
	srv.Router().Get(path, l.handleCallback)

	l.srv = srv
	l.app = app

	return l, nil
}

// Start begins serving the redirect URI. It returns immediately; the listen
// error, if any, is delivered through Wait.
func (l *CallbackListener) Start() {
	go func() {
		if err := l.srv.Serve(l.addr); err != nil {
			l.deliver(callbackResult{err: goerrors.Wrap(err, goerrors.CategoryOperation, "callback listener failed")})
		}
	}()
}

// Wait blocks until the authorization code arrives, the flow fails, or ctx is
// done. The listener is shut down before Wait returns.
func (l *CallbackListener) Wait(ctx context.Context) (string, error) {
	defer func() {
		if l.app != nil {
			_ = l.app.Shutdown()
		}
	}()

	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "login flow cancelled")
	case result := <-l.results:
		return result.code, result.err
	}
}

func (l *CallbackListener) handleCallback(ctx router.Context) error {
	if errParam := ctx.Query("error"); errParam != "" {
		clone := ErrCallbackDenied.Clone()
		l.deliver(callbackResult{err: clone.WithMetadata(map[string]any{
			"code":        errParam,
			"description": ctx.Query("error_description"),
		})})
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "login failed, you can close this window",
		})
	}

	if err := l.states.Verify(ctx.Query("state")); err != nil {
		l.deliver(callbackResult{err: err})
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "login request could not be verified",
		})
	}

	code := ctx.Query("code")
	if code == "" {
		l.deliver(callbackResult{err: ErrInvalidState})
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "missing authorization code",
		})
	}

	l.deliver(callbackResult{code: code})
	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "login complete, you can close this window",
	})
}

// deliver publishes the first result; later redirects are ignored.
func (l *CallbackListener) deliver(result callbackResult) {
	l.once.Do(func() {
		l.results <- result
	})
}
