// Package booking drives an open booking detail screen: it loads the
// booking and its quotes, reloads on every relevant push event or local
// action, and owns the chat message list shown on the screen.
package booking

import (
	"context"
	"errors"
	"slices"
	"sync"

	"mechanicapp/client/api"
	"mechanicapp/client/chat"
	"mechanicapp/client/model"
	"mechanicapp/client/socket"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is returned once the detail has been closed.
	ErrClosed = errors.New("booking: detail closed")
	// ErrSuperseded is returned by a reload whose response arrived after a
	// newer reload was issued; its result is discarded.
	ErrSuperseded = errors.New("booking: reload superseded")
)

// API is the part of the REST client a detail screen uses.
type API interface {
	Booking(ctx context.Context, id string) (model.Booking, error)
	Quotes(ctx context.Context, bookingID string) ([]model.Quote, error)
	AcceptBooking(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) error
	UpdateCost(ctx context.Context, id string, cost float64) error
	UpdateDescription(ctx context.Context, bookingID string, description *string) error
	CreateQuote(ctx context.Context, bookingID string, in api.QuoteInput) error
	UpdateQuote(ctx context.Context, bookingID, quoteID string, in api.QuoteInput) error
	WithdrawQuote(ctx context.Context, bookingID, quoteID string) error
	RejectQuote(ctx context.Context, bookingID, quoteID string) error
	AcceptQuote(ctx context.Context, bookingID, quoteID string) error
	AddClarification(ctx context.Context, bookingID, question string) error
	AnswerClarification(ctx context.Context, clarificationID, answer string) error
	MarkDirectPaid(ctx context.Context, bookingID string) error
	CreateRating(ctx context.Context, in api.Rating) error
}

// Realtime is the part of the socket manager a detail screen uses.
type Realtime interface {
	Connect(ctx context.Context) (*socket.Connection, error)
	JoinRoom(bookingID string) error
	LeaveRoom(bookingID string) error
	SendMessage(bookingID, content, clientKey string) error
	OnMessage(filter socket.Filter, cb func(socket.MessageEvent)) func()
	OnQuoteEvent(filter socket.Filter, cb func(socket.QuoteEvent)) func()
}

type Phase int

const (
	Loading Phase = iota
	Ready
)

func (p Phase) String() string {
	if p == Loading {
		return "loading"
	}
	return "ready"
}

// State is everything the screen renders. Err holds the last reload
// failure; the previously loaded booking is kept alongside it.
type State struct {
	Phase    Phase
	Booking  *model.Booking
	Quotes   []model.Quote
	Messages []model.Message
	Err      error
}

type Options struct {
	UserID func() string
	Role   model.Role
	// KeepPendingMessages keeps unechoed optimistic chat entries across
	// reloads; only meaningful when the backend echoes clientKey.
	KeepPendingMessages bool
	// OnChange is called with a snapshot after every state change.
	OnChange func(State)
	Logger   *zap.Logger
}

// Detail is one open booking detail screen.
type Detail struct {
	id       string
	api      API
	rt       Realtime
	composer *chat.Composer
	opts     Options
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	seq    uint64
	closed bool
	unsubs []func()
}

func NewDetail(id string, client API, rt Realtime, opts Options) *Detail {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.UserID == nil {
		opts.UserID = func() string { return "" }
	}
	log = log.With(zap.String("booking", id))
	ctx, cancel := context.WithCancel(context.Background())
	return &Detail{
		id:       id,
		api:      client,
		rt:       rt,
		composer: chat.NewComposer(rt, opts.UserID, log),
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Phase: Loading},
	}
}

func (d *Detail) ID() string {
	return d.id
}

// State returns a snapshot of the current screen state.
func (d *Detail) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *Detail) snapshot() State {
	s := d.state
	s.Quotes = slices.Clone(s.Quotes)
	s.Messages = slices.Clone(s.Messages)
	return s
}

func (d *Detail) notify(s State) {
	if d.opts.OnChange != nil {
		d.opts.OnChange(s)
	}
}

// Open connects the realtime channel, joins the booking room, subscribes to
// its chat and quote events and performs the initial load. Realtime
// failures only disable push updates.
func (d *Detail) Open(ctx context.Context) error {
	if _, err := d.rt.Connect(ctx); err != nil {
		d.log.Warn("realtime unavailable", zap.Error(err))
	}
	if err := d.rt.JoinRoom(d.id); err != nil {
		d.log.Warn("join booking room", zap.Error(err))
	}

	filter := socket.ForBooking(d.id)
	unsubs := []func(){
		d.rt.OnMessage(filter, func(socket.MessageEvent) { d.trigger("new_message") }),
		d.rt.OnQuoteEvent(filter, func(e socket.QuoteEvent) { d.trigger(e.Event) }),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return ErrClosed
	}
	d.unsubs = append(d.unsubs, unsubs...)
	d.mu.Unlock()

	err := d.Reload(ctx)
	if errors.Is(err, ErrSuperseded) {
		return nil
	}
	return err
}

// trigger starts a background reload for a push event. It runs on the
// socket read goroutine and must not block.
func (d *Detail) trigger(reason string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		err := d.Reload(d.ctx)
		switch {
		case err == nil, errors.Is(err, ErrSuperseded), errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		default:
			d.log.Debug("event reload failed", zap.String("reason", reason), zap.Error(err))
		}
	}()
}

// Reload fetches the booking and its quotes and replaces the state in one
// step. A quote fetch failure degrades to an empty list. Only the most
// recently issued reload may apply its result.
func (d *Detail) Reload(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.seq++
	token := d.seq
	d.state.Phase = Loading
	s := d.snapshot()
	d.mu.Unlock()
	d.notify(s)

	reqCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		b      model.Booking
		quotes []model.Quote
	)
	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() error {
		var err error
		b, err = d.api.Booking(gctx, d.id)
		return err
	})
	g.Go(func() error {
		q, err := d.api.Quotes(gctx, d.id)
		if err != nil {
			d.log.Debug("quote list unavailable", zap.Error(err))
			return nil
		}
		quotes = q
		return nil
	})
	err := g.Wait()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if token != d.seq {
		d.mu.Unlock()
		return ErrSuperseded
	}
	d.state.Phase = Ready
	if err != nil {
		d.state.Err = err
	} else {
		if quotes == nil {
			quotes = []model.Quote{}
		}
		d.state = State{
			Phase:    Ready,
			Booking:  &b,
			Quotes:   quotes,
			Messages: chat.Merge(b.Messages, d.state.Messages, d.opts.KeepPendingMessages),
		}
	}
	s = d.snapshot()
	d.mu.Unlock()
	d.notify(s)
	return err
}

// Close cancels in-flight work, detaches the event subscriptions and leaves
// the booking room. It returns once every background reload has finished.
func (d *Detail) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	unsubs := d.unsubs
	d.unsubs = nil
	d.mu.Unlock()

	d.cancel()
	for _, u := range unsubs {
		u()
	}
	if err := d.rt.LeaveRoom(d.id); err != nil {
		d.log.Debug("leave booking room", zap.Error(err))
	}
	d.wg.Wait()
}

// SendChat sends text to the booking conversation and appends the
// optimistic entry to the screen's message list.
func (d *Detail) SendChat(text string) error {
	if d.isClosed() {
		return ErrClosed
	}
	current := d.State().Messages
	return d.composer.Send(d.id, text, current, func(next []model.Message) {
		if len(next) == 0 {
			return
		}
		d.mu.Lock()
		d.state.Messages = append(d.state.Messages, next[len(next)-1])
		s := d.snapshot()
		d.mu.Unlock()
		d.notify(s)
	})
}

func (d *Detail) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
