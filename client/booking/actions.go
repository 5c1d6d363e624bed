package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mechanicapp/client/api"
	"mechanicapp/client/model"

	"go.uber.org/zap"
)

var (
	ErrNoQuote      = errors.New("booking: no quote of yours on this booking")
	ErrInvalidInput = errors.New("booking: invalid input")
)

// ActionError is a failed user action. Message is ready to show in an alert.
type ActionError struct {
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func invalid(action, message string) error {
	return &ActionError{Action: action, Message: message, Err: ErrInvalidInput}
}

// act performs one backend call and reloads on success. On failure the
// state is left untouched.
func (d *Detail) act(ctx context.Context, action string, call func(ctx context.Context) error) error {
	if d.isClosed() {
		return ErrClosed
	}
	if err := call(ctx); err != nil {
		return &ActionError{Action: action, Message: api.ErrorMessage(err, api.DefaultErrorMessage), Err: err}
	}
	if err := d.Reload(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		d.log.Debug("reload after action", zap.String("action", action), zap.Error(err))
	}
	return nil
}

// Accept takes an open booking as the signed-in mechanic.
func (d *Detail) Accept(ctx context.Context) error {
	return d.act(ctx, "accept booking", func(ctx context.Context) error {
		return d.api.AcceptBooking(ctx, d.id)
	})
}

// UpdateStatus asks the backend to move the booking to status. Legality of
// the transition is decided server side.
func (d *Detail) UpdateStatus(ctx context.Context, status model.BookingStatus) error {
	if !status.Valid() {
		return invalid("update status", fmt.Sprintf("Unknown status %q.", status))
	}
	return d.act(ctx, "update status", func(ctx context.Context) error {
		return d.api.UpdateStatus(ctx, d.id, status)
	})
}

func (d *Detail) SetCost(ctx context.Context, cost float64) error {
	if cost <= 0 {
		return invalid("set cost", "Please enter a valid amount.")
	}
	return d.act(ctx, "set cost", func(ctx context.Context) error {
		return d.api.UpdateCost(ctx, d.id, cost)
	})
}

// UpdateDescription sets the fault description; nil clears it.
func (d *Detail) UpdateDescription(ctx context.Context, description *string) error {
	if description != nil {
		trimmed := strings.TrimSpace(*description)
		if trimmed == "" {
			description = nil
		} else {
			description = &trimmed
		}
	}
	return d.act(ctx, "update description", func(ctx context.Context) error {
		return d.api.UpdateDescription(ctx, d.id, description)
	})
}

// SubmitQuote creates the mechanic's quote, or updates its price when one
// already exists on the booking.
func (d *Detail) SubmitQuote(ctx context.Context, price float64, message string) error {
	if price <= 0 {
		return invalid("submit quote", "Please enter a valid price.")
	}
	own, exists := model.OwnQuote(d.State().Quotes, d.opts.UserID())
	if exists {
		return d.act(ctx, "update quote", func(ctx context.Context) error {
			return d.api.UpdateQuote(ctx, d.id, own.ID, api.QuoteInput{ProposedPrice: price})
		})
	}

	in := api.QuoteInput{ProposedPrice: price}
	if m := strings.TrimSpace(message); m != "" {
		in.Message = &m
	}
	return d.act(ctx, "submit quote", func(ctx context.Context) error {
		return d.api.CreateQuote(ctx, d.id, in)
	})
}

// WithdrawQuote withdraws the signed-in mechanic's quote.
func (d *Detail) WithdrawQuote(ctx context.Context) error {
	own, ok := model.OwnQuote(d.State().Quotes, d.opts.UserID())
	if !ok {
		return ErrNoQuote
	}
	return d.act(ctx, "withdraw quote", func(ctx context.Context) error {
		return d.api.WithdrawQuote(ctx, d.id, own.ID)
	})
}

func (d *Detail) AcceptQuote(ctx context.Context, quoteID string) error {
	return d.act(ctx, "accept quote", func(ctx context.Context) error {
		return d.api.AcceptQuote(ctx, d.id, quoteID)
	})
}

func (d *Detail) RejectQuote(ctx context.Context, quoteID string) error {
	return d.act(ctx, "reject quote", func(ctx context.Context) error {
		return d.api.RejectQuote(ctx, d.id, quoteID)
	})
}

func (d *Detail) AddClarification(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return invalid("add clarification", "Please enter a question.")
	}
	return d.act(ctx, "add clarification", func(ctx context.Context) error {
		return d.api.AddClarification(ctx, d.id, question)
	})
}

func (d *Detail) AnswerClarification(ctx context.Context, clarificationID, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return invalid("answer clarification", "Please enter an answer.")
	}
	return d.act(ctx, "answer clarification", func(ctx context.Context) error {
		return d.api.AnswerClarification(ctx, clarificationID, answer)
	})
}

// MarkPaid records a payment made directly to the mechanic.
func (d *Detail) MarkPaid(ctx context.Context) error {
	return d.act(ctx, "mark paid", func(ctx context.Context) error {
		return d.api.MarkDirectPaid(ctx, d.id)
	})
}

// Rate submits a 1 to 5 star rating for the booking's mechanic.
func (d *Detail) Rate(ctx context.Context, stars int, comment string) error {
	b := d.State().Booking
	if b == nil || b.Mechanic == nil {
		return invalid("rate", "There is no mechanic to rate yet.")
	}
	if stars < 1 || stars > 5 {
		return invalid("rate", "Please choose between 1 and 5 stars.")
	}
	in := api.Rating{
		BookingID:  b.ID,
		MechanicID: b.Mechanic.ID,
		Rating:     stars,
		Comment:    strings.TrimSpace(comment),
	}
	return d.act(ctx, "rate", func(ctx context.Context) error {
		return d.api.CreateRating(ctx, in)
	})
}

// Action is the single status action a detail screen offers.
type Action string

const (
	ActionNone     Action = ""
	ActionAccept   Action = "accept"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionPay      Action = "pay"
	ActionRate     Action = "rate"
)

// NextStatus is the status requested by a status action, if it is one.
func (a Action) NextStatus() (model.BookingStatus, bool) {
	switch a {
	case ActionStart:
		return model.BookingInProgress, true
	case ActionComplete:
		return model.BookingDone, true
	}
	return "", false
}

// OfferedAction maps the booking's current status to the action the screen
// offers role. It never decides legality; the backend does.
func OfferedAction(status model.BookingStatus, role model.Role) Action {
	switch role {
	case model.RoleMechanic:
		switch status {
		case model.BookingRequested:
			return ActionAccept
		case model.BookingAccepted:
			return ActionStart
		case model.BookingInProgress:
			return ActionComplete
		}
	case model.RoleUser:
		switch status {
		case model.BookingDone:
			return ActionPay
		case model.BookingPaid, model.BookingDelivered:
			return ActionRate
		}
	}
	return ActionNone
}
