// Package app is the client's composition root. It builds every shared
// component once and hands them to the screens that need them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mechanicapp/client/api"
	"mechanicapp/client/booking"
	"mechanicapp/client/config"
	"mechanicapp/client/kv"
	"mechanicapp/client/model"
	"mechanicapp/client/session"
	"mechanicapp/client/socket"
	"mechanicapp/client/wallet"
	"mechanicapp/logger"

	"go.uber.org/zap"
)

// ErrInvalidLogin is returned when the backend accepted the credentials
// but answered without a user or token.
var ErrInvalidLogin = errors.New("app: invalid login response")

type options struct {
	log        *zap.Logger
	store      kv.Store
	dialer     socket.Dialer
	httpClient *http.Client
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithStore replaces the configured key-value backend.
func WithStore(s kv.Store) Option { return func(o *options) { o.store = s } }

func WithDialer(d socket.Dialer) Option { return func(o *options) { o.dialer = d } }

func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.httpClient = hc } }

type App struct {
	Config     config.Config
	Log        *zap.Logger
	Session    *session.Store
	Onboarding *session.Onboarding
	API        *api.Client
	Socket     *socket.Manager

	closers []func() error
}

// New wires the application. Logging out through any path disconnects the
// realtime session.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}

	log := o.log
	if log == nil {
		var err error
		if log, err = logger.New(cfg.Env, cfg.LogLevel); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			_ = log.Sync()
			return nil
		})
	}
	a.Log = log

	store := o.store
	if store == nil {
		var err error
		if store, err = a.openStore(ctx); err != nil {
			return nil, err
		}
	}

	a.Session = session.NewStore(store, log.Named("session"))
	a.Onboarding = session.NewOnboarding(store)

	apiOpts := []api.Option{api.WithLogger(log.Named("api"))}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
	}
	a.API = api.New(cfg.APIURL, a.Session, cfg.HTTPTimeout(), apiOpts...)

	dialer := o.dialer
	if dialer == nil {
		dialer = socket.WebsocketDialer{}
	}
	a.Socket = socket.NewManager(cfg.APIURL, cfg.SocketPath, a.Session, dialer, log.Named("socket"))

	a.Session.OnLogout(a.Socket.Disconnect)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (kv.Store, error) {
	switch strings.ToLower(a.Config.StoreBackend) {
	case "memory":
		return kv.NewMemory(), nil
	case "redis":
		r, err := kv.NewRedis(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, "mechanic:")
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		return kv.NewFile(a.Config.StorePath), nil
	}
}

// Start hydrates the persisted session and reports whether onboarding has
// been completed on this device.
func (a *App) Start(ctx context.Context) (onboarded bool) {
	a.Session.Hydrate(ctx)
	onboarded = a.Onboarding.Completed(ctx)
	a.Log.Info("client started",
		zap.Bool("authenticated", a.Session.IsAuthenticated()),
		zap.Bool("onboarded", onboarded))
	return onboarded
}

// Login signs in as role and stores the resulting session.
func (a *App) Login(ctx context.Context, role model.Role, email, password string) (model.User, error) {
	res, err := a.API.Login(ctx, role, strings.TrimSpace(email), password)
	if err != nil {
		return model.User{}, err
	}
	if res.AccessToken == "" || res.User.ID == "" {
		return model.User{}, ErrInvalidLogin
	}
	if res.User.Role == "" {
		res.User.Role = role
	}
	if err := a.Session.SetAuth(ctx, res.User, res.AccessToken); err != nil {
		return model.User{}, err
	}
	a.Log.Info("signed in", zap.String("user", res.User.ID), zap.String("role", string(res.User.Role)))
	return res.User, nil
}

// Logout tears the session down. It reports false when already signed out.
func (a *App) Logout(ctx context.Context) bool {
	return a.Session.Logout(ctx)
}

// OpenBooking opens the detail screen for booking id and performs its
// initial load. A failed load still returns the detail so the caller can
// show the error and retry.
func (a *App) OpenBooking(ctx context.Context, id string, onChange func(booking.State)) (*booking.Detail, error) {
	user, ok := a.Session.User()
	if !ok {
		return nil, session.ErrNoSession
	}
	d := booking.NewDetail(id, a.API, a.Socket, booking.Options{
		UserID:              a.Session.UserID,
		Role:                user.Role,
		KeepPendingMessages: a.Config.ChatEchoClientKeys,
		OnChange:            onChange,
		Logger:              a.Log.Named("booking"),
	})
	return d, d.Open(ctx)
}

// Wallet returns a wallet screen bound to the API client.
func (a *App) Wallet() *wallet.Screen {
	return wallet.NewScreen(a.API, a.Log.Named("wallet"))
}

// Close disconnects the socket and releases the store.
func (a *App) Close() error {
	a.Socket.Disconnect()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
