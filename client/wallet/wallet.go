package wallet

import (
	"context"
	"errors"
	"sync"

	"mechanicapp/client/api"
	"mechanicapp/client/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const recentLimit = 50

// API is the part of the REST client the wallet screen uses.
type API interface {
	WalletSummary(ctx context.Context) (model.WalletSummary, error)
	Transactions(ctx context.Context, q api.TransactionQuery) (model.TransactionPage, error)
	InitializePayment(ctx context.Context, bookingID string) (model.PaymentInit, error)
	VerifyPayment(ctx context.Context, reference string) (model.PaymentVerification, error)
}

// URLOpener sends the user to an external page, typically the system browser.
type URLOpener interface {
	Open(ctx context.Context, url string) error
}

type State struct {
	Loaded       bool
	Summary      *model.WalletSummary
	Transactions []model.Transaction
}

// Screen is the customer wallet: balance, recent transactions and the
// checkout redirect.
type Screen struct {
	api API
	log *zap.Logger

	mu        sync.Mutex
	state     State
	reference string
}

func NewScreen(client API, log *zap.Logger) *Screen {
	if log == nil {
		log = zap.NewNop()
	}
	return &Screen{api: client, log: log}
}

func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Transactions = append([]model.Transaction{}, st.Transactions...)
	return st
}

// PendingReference is the reference of the last checkout started here.
func (s *Screen) PendingReference() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

// Load fetches the summary and recent transactions together. Either
// failing degrades to an absent summary or an empty list.
func (s *Screen) Load(ctx context.Context) {
	var (
		summary *model.WalletSummary
		txs     []model.Transaction
	)
	var g errgroup.Group
	g.Go(func() error {
		sum, err := s.api.WalletSummary(ctx)
		if err != nil {
			s.log.Debug("wallet summary unavailable", zap.Error(err))
			return nil
		}
		summary = &sum
		return nil
	})
	g.Go(func() error {
		page, err := s.api.Transactions(ctx, api.TransactionQuery{Limit: recentLimit})
		if err != nil {
			s.log.Debug("wallet transactions unavailable", zap.Error(err))
			return nil
		}
		txs = page.Items
		return nil
	})
	_ = g.Wait()

	if txs == nil {
		txs = []model.Transaction{}
	}
	s.mu.Lock()
	s.state = State{Loaded: true, Summary: summary, Transactions: txs}
	s.mu.Unlock()
}

// Checkout starts a payment for bookingID and opens the provider's page.
func (s *Screen) Checkout(ctx context.Context, bookingID string, opener URLOpener) (model.PaymentInit, error) {
	init, err := s.api.InitializePayment(ctx, bookingID)
	if err != nil {
		return model.PaymentInit{}, err
	}
	if init.AuthorizationURL == "" {
		return init, errors.New("wallet: payment provider returned no checkout url")
	}
	s.mu.Lock()
	s.reference = init.Reference
	s.mu.Unlock()
	if err := opener.Open(ctx, init.AuthorizationURL); err != nil {
		return init, err
	}
	return init, nil
}

// Resume reconciles after returning from the checkout page: the wallet is
// reloaded and, when a reference is given, it is verified and the wallet
// reloaded again on success. Verification failures are only logged.
func (s *Screen) Resume(ctx context.Context, reference string) bool {
	s.Load(ctx)
	if reference == "" {
		return false
	}
	res, err := s.api.VerifyPayment(ctx, reference)
	if err != nil {
		s.log.Warn("verify payment", zap.String("reference", reference), zap.Error(err))
		return false
	}
	if !res.Success {
		return false
	}
	s.mu.Lock()
	if s.reference == reference {
		s.reference = ""
	}
	s.mu.Unlock()
	s.Load(ctx)
	return true
}
