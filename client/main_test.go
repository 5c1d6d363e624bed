package main

import (
	"strings"
	"testing"

	"mechanicapp/client/booking"
	"mechanicapp/client/model"
)

func TestSplitNumber(t *testing.T) {
	tests := []struct {
		in   string
		n    float64
		rest string
	}{
		{"5000 brake pads included", 5000, "brake pads included"},
		{"4", 4, ""},
		{" 12.5  ", 12.5, ""},
		{"great job", 0, "great job"},
	}
	for _, tc := range tests {
		n, rest := splitNumber(tc.in)
		if n != tc.n || rest != tc.rest {
			t.Errorf("splitNumber(%q) = %v, %q; want %v, %q", tc.in, n, rest, tc.n, tc.rest)
		}
	}
}

func TestPrintStateNewMessagesByID(t *testing.T) {
	var out, errOut strings.Builder
	show := printState(&out, &errOut, model.RoleUser)
	b := &model.Booking{ID: "B1", Status: model.BookingRequested}

	show(booking.State{Phase: booking.Ready, Booking: b, Messages: []model.Message{{ID: "m1", SenderID: "U1", Content: "hello"}}})
	// A send during a reload arrives while loading.
	show(booking.State{Phase: booking.Loading, Booking: b, Messages: []model.Message{
		{ID: "m1", SenderID: "U1", Content: "hello"},
		{ID: model.TempIDPrefix + "1", SenderID: "U1", Content: "on my way"},
	}})
	// The reload replaces the optimistic entry, keeping the count.
	show(booking.State{Phase: booking.Ready, Booking: b, Messages: []model.Message{
		{ID: "m1", SenderID: "U1", Content: "hello"},
		{ID: "m2", SenderID: "U1", Content: "on my way"},
	}})

	got := out.String()
	for _, want := range []string{"  U1: hello\n", "  U1: on my way (sending)\n", "  U1: on my way\n"} {
		if strings.Count(got, want) != 1 {
			t.Errorf("expected %q once in output:\n%s", want, got)
		}
	}
	if strings.Count(got, "[B1]") != 2 {
		t.Errorf("expected a header per ready state:\n%s", got)
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected errors %q", errOut.String())
	}
}
