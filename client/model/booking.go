package model

import "time"

// Role of the authenticated account.
type Role string

const (
	RoleUser     Role = "USER"
	RoleMechanic Role = "MECHANIC"
	RoleAdmin    Role = "ADMIN"
)

// User is the identity stored with the session.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	CompanyName   string `json:"companyName,omitempty"`
	OwnerFullName string `json:"ownerFullName,omitempty"`
}

// BookingStatus is the closed set of booking states. Transitions are
// enforced by the backend.
type BookingStatus string

const (
	BookingRequested  BookingStatus = "REQUESTED"
	BookingAccepted   BookingStatus = "ACCEPTED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingDone       BookingStatus = "DONE"
	BookingPaid       BookingStatus = "PAID"
	BookingDelivered  BookingStatus = "DELIVERED"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingRequested, BookingAccepted, BookingInProgress, BookingDone, BookingPaid, BookingDelivered:
		return true
	}
	return false
}

// QuoteStatus is the lifecycle of a mechanic's quote.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "PENDING"
	QuoteAccepted  QuoteStatus = "ACCEPTED"
	QuoteRejected  QuoteStatus = "REJECTED"
	QuoteWithdrawn QuoteStatus = "WITHDRAWN"
)

// Quote is a mechanic's proposal for an open booking.
type Quote struct {
	ID            string      `json:"id"`
	BookingID     string      `json:"bookingId"`
	MechanicID    string      `json:"mechanicId"`
	ProposedPrice float64     `json:"proposedPrice"`
	Message       *string     `json:"message,omitempty"`
	Status        QuoteStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt,omitempty"`
}

// Mechanic is the provider summary embedded in bookings.
type Mechanic struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName,omitempty"`
}

// Booking is the aggregate shown on the detail screens.
type Booking struct {
	ID             string          `json:"id"`
	Status         BookingStatus   `json:"status"`
	UserID         string          `json:"userId,omitempty"`
	MechanicID     *string         `json:"mechanicId,omitempty"`
	Mechanic       *Mechanic       `json:"mechanic,omitempty"`
	VehicleID      string          `json:"vehicleId,omitempty"`
	FaultID        string          `json:"faultId,omitempty"`
	Description    *string         `json:"description,omitempty"`
	EstimatedCost  *float64        `json:"estimatedCost,omitempty"`
	Messages       []Message       `json:"messages,omitempty"`
	Clarifications []Clarification `json:"clarifications,omitempty"`
	CreatedAt      time.Time       `json:"createdAt,omitempty"`
}

// OwnQuote returns the quote mechanicID placed among quotes, if any.
// Withdrawn quotes are ignored so a new quote can be created.
func OwnQuote(quotes []Quote, mechanicID string) (Quote, bool) {
	for _, q := range quotes {
		if q.MechanicID == mechanicID && q.Status != QuoteWithdrawn {
			return q, true
		}
	}
	return Quote{}, false
}
