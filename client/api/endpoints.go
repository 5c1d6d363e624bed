package api

import (
	"context"
	"net/url"
	"strconv"

	"mechanicapp/client/model"
)

// AuthResult is returned by the login endpoints.
type AuthResult struct {
	User        model.User `json:"user"`
	AccessToken string     `json:"access_token"`
}

type RegisterUser struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	DateOfBirth string `json:"dateOfBirth"`
	Password    string `json:"password"`
}

type RegisterMechanic struct {
	CompanyName   string `json:"companyName"`
	OwnerFullName string `json:"ownerFullName"`
	Email         string `json:"email"`
	Password      string `json:"password"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) RegisterUser(ctx context.Context, in RegisterUser) error {
	return c.post(ctx, "/auth/register/user", in, nil)
}

func (c *Client) RegisterMechanic(ctx context.Context, in RegisterMechanic) error {
	return c.post(ctx, "/auth/register/mechanic", in, nil)
}

// Login authenticates as role (user or mechanic).
func (c *Client) Login(ctx context.Context, role model.Role, email, password string) (AuthResult, error) {
	path := "/auth/login/user"
	if role == model.RoleMechanic {
		path = "/auth/login/mechanic"
	}
	var out AuthResult
	err := c.post(ctx, path, credentials{Email: email, Password: password}, &out)
	return out, err
}

func (c *Client) VerifyEmail(ctx context.Context, token string, role model.Role) error {
	q := url.Values{"token": {token}, "role": {string(role)}}
	return c.get(ctx, "/auth/verify-email", q, nil)
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var out model.User
	err := c.get(ctx, "/auth/me", nil, &out)
	return out, err
}

// Bookings

type CreateBooking struct {
	VehicleID   string   `json:"vehicleId"`
	FaultID     string   `json:"faultId"`
	MechanicID  *string  `json:"mechanicId,omitempty"`
	Description *string  `json:"description,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

type NearbyQuery struct {
	Lat           float64
	Lng           float64
	FaultCategory string
	Radius        *float64
	VehicleID     string
}

// QuoteInput is the body of create and update quote calls. Message is
// omitted from the JSON document when nil.
type QuoteInput struct {
	ProposedPrice float64 `json:"proposedPrice"`
	Message       *string `json:"message,omitempty"`
}

func (c *Client) CreateBooking(ctx context.Context, in CreateBooking) (model.Booking, error) {
	var out model.Booking
	err := c.post(ctx, "/bookings", in, &out)
	return out, err
}

func (c *Client) Bookings(ctx context.Context) ([]model.Booking, error) {
	var out []model.Booking
	err := c.get(ctx, "/bookings", nil, &out)
	return out, err
}

func (c *Client) Booking(ctx context.Context, id string) (model.Booking, error) {
	var out model.Booking
	err := c.get(ctx, "/bookings/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) NearbyMechanics(ctx context.Context, q NearbyQuery) ([]model.Mechanic, error) {
	v := url.Values{
		"lat":           {strconv.FormatFloat(q.Lat, 'f', -1, 64)},
		"lng":           {strconv.FormatFloat(q.Lng, 'f', -1, 64)},
		"faultCategory": {q.FaultCategory},
	}
	if q.Radius != nil {
		v.Set("radius", strconv.FormatFloat(*q.Radius, 'f', -1, 64))
	}
	if q.VehicleID != "" {
		v.Set("vehicleId", q.VehicleID)
	}
	var out []model.Mechanic
	err := c.get(ctx, "/bookings/nearby-mechanics", v, &out)
	return out, err
}

func (c *Client) AcceptBooking(ctx context.Context, id string) error {
	return c.put(ctx, "/bookings/"+url.PathEscape(id)+"/accept", nil, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) error {
	body := struct {
		Status model.BookingStatus `json:"status"`
	}{status}
	return c.put(ctx, "/bookings/"+url.PathEscape(id)+"/status", body, nil)
}

func (c *Client) UpdateCost(ctx context.Context, id string, cost float64) error {
	body := struct {
		Cost float64 `json:"cost"`
	}{cost}
	return c.put(ctx, "/bookings/"+url.PathEscape(id)+"/cost", body, nil)
}

func (c *Client) OpenRequests(ctx context.Context, radius *float64) ([]model.Booking, error) {
	var q url.Values
	if radius != nil {
		q = url.Values{"radius": {strconv.FormatFloat(*radius, 'f', -1, 64)}}
	}
	var out []model.Booking
	err := c.get(ctx, "/bookings/open-requests", q, &out)
	return out, err
}

func (c *Client) Quotes(ctx context.Context, bookingID string) ([]model.Quote, error) {
	var out []model.Quote
	err := c.get(ctx, "/bookings/"+url.PathEscape(bookingID)+"/quotes", nil, &out)
	return out, err
}

func (c *Client) CreateQuote(ctx context.Context, bookingID string, in QuoteInput) error {
	return c.post(ctx, "/bookings/"+url.PathEscape(bookingID)+"/quotes", in, nil)
}

func (c *Client) UpdateQuote(ctx context.Context, bookingID, quoteID string, in QuoteInput) error {
	return c.put(ctx, quotePath(bookingID, quoteID), in, nil)
}

func (c *Client) WithdrawQuote(ctx context.Context, bookingID, quoteID string) error {
	return c.put(ctx, quotePath(bookingID, quoteID)+"/withdraw", nil, nil)
}

func (c *Client) RejectQuote(ctx context.Context, bookingID, quoteID string) error {
	return c.put(ctx, quotePath(bookingID, quoteID)+"/reject", nil, nil)
}

func (c *Client) AcceptQuote(ctx context.Context, bookingID, quoteID string) error {
	return c.put(ctx, quotePath(bookingID, quoteID)+"/accept", nil, nil)
}

func quotePath(bookingID, quoteID string) string {
	return "/bookings/" + url.PathEscape(bookingID) + "/quotes/" + url.PathEscape(quoteID)
}

// UpdateDescription sets or, with nil, clears the booking description.
func (c *Client) UpdateDescription(ctx context.Context, bookingID string, description *string) error {
	body := struct {
		Description *string `json:"description"`
	}{description}
	return c.put(ctx, "/bookings/"+url.PathEscape(bookingID)+"/description", body, nil)
}

func (c *Client) AddClarification(ctx context.Context, bookingID, question string) error {
	body := struct {
		Question string `json:"question"`
	}{question}
	return c.post(ctx, "/bookings/"+url.PathEscape(bookingID)+"/clarifications", body, nil)
}

func (c *Client) AnswerClarification(ctx context.Context, clarificationID, answer string) error {
	body := struct {
		Answer string `json:"answer"`
	}{answer}
	return c.put(ctx, "/bookings/clarifications/"+url.PathEscape(clarificationID)+"/answer", body, nil)
}

// Ratings

type Rating struct {
	BookingID  string `json:"bookingId"`
	MechanicID string `json:"mechanicId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
}

func (c *Client) CreateRating(ctx context.Context, in Rating) error {
	return c.post(ctx, "/ratings", in, nil)
}

func (c *Client) MechanicRatings(ctx context.Context, mechanicID string) ([]Rating, error) {
	var out []Rating
	err := c.get(ctx, "/ratings/mechanic/"+url.PathEscape(mechanicID), nil, &out)
	return out, err
}

func (c *Client) MechanicAverage(ctx context.Context, mechanicID string) (*float64, error) {
	var out struct {
		Average *float64 `json:"average"`
	}
	err := c.get(ctx, "/ratings/mechanic/"+url.PathEscape(mechanicID)+"/average", nil, &out)
	return out.Average, err
}

// Wallet

type TransactionQuery struct {
	Type   string
	Limit  int
	Offset int
}

func (c *Client) Banks(ctx context.Context) ([]model.Bank, error) {
	var out []model.Bank
	err := c.get(ctx, "/wallet/banks", nil, &out)
	return out, err
}

func (c *Client) InitializePayment(ctx context.Context, bookingID string) (model.PaymentInit, error) {
	body := struct {
		BookingID string `json:"bookingId"`
	}{bookingID}
	var out model.PaymentInit
	err := c.post(ctx, "/wallet/initialize-payment", body, &out)
	return out, err
}

func (c *Client) VerifyPayment(ctx context.Context, reference string) (model.PaymentVerification, error) {
	body := struct {
		Reference string `json:"reference"`
	}{reference}
	var out model.PaymentVerification
	err := c.post(ctx, "/wallet/verify-payment", body, &out)
	return out, err
}

func (c *Client) MarkDirectPaid(ctx context.Context, bookingID string) error {
	body := struct {
		BookingID string `json:"bookingId"`
	}{bookingID}
	return c.post(ctx, "/wallet/mark-direct-paid", body, nil)
}

func (c *Client) Transactions(ctx context.Context, q TransactionQuery) (model.TransactionPage, error) {
	v := url.Values{}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	var out model.TransactionPage
	err := c.get(ctx, "/wallet/transactions", v, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context) (model.Balance, error) {
	var out model.Balance
	err := c.get(ctx, "/wallet/balance", nil, &out)
	return out, err
}

func (c *Client) Owing(ctx context.Context) (model.Owing, error) {
	var out model.Owing
	err := c.get(ctx, "/wallet/owing", nil, &out)
	return out, err
}

func (c *Client) WalletSummary(ctx context.Context) (model.WalletSummary, error) {
	var out model.WalletSummary
	err := c.get(ctx, "/wallet/summary", nil, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, amountMinor int64) error {
	body := struct {
		AmountMinor int64 `json:"amountMinor"`
	}{amountMinor}
	return c.post(ctx, "/wallet/withdraw", body, nil)
}
