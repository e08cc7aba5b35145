package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError(t *testing.T) {
	t.Run("matches ErrRequestRejected", func(t *testing.T) {
		err := fmt.Errorf("add failed: %w", &APIError{StatusCode: 409, Message: "Anime already in list"})
		if !errors.Is(err, ErrRequestRejected) {
			t.Error("expected wrapped APIError to match ErrRequestRejected")
		}
	})

	t.Run("Error includes status and message", func(t *testing.T) {
		err := &APIError{StatusCode: 400, Message: "bad"}
		if got, want := err.Error(), "request rejected: status 400: bad"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		err = &APIError{StatusCode: 500}
		if got, want := err.Error(), "request rejected: status 500"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})
}

func TestServerMessage(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want string
	}{
		{name: "api error with message", err: &APIError{StatusCode: 409, Message: "duplicate"}, want: "duplicate"},
		{name: "wrapped api error", err: fmt.Errorf("x: %w", &APIError{StatusCode: 409, Message: "dup"}), want: "dup"},
		{name: "api error without message", err: &APIError{StatusCode: 500}, want: "fallback"},
		{name: "other error", err: ErrAPIRequest, want: "fallback"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ServerMessage(tt.err, "fallback"); got != tt.want {
				t.Errorf("ServerMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
