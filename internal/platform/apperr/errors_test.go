package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validationf("password too short"), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStatusWrapped(t *testing.T) {
	err := fmt.Errorf("identity create: %w", ErrConflict)
	if got := Status(err); got != http.StatusConflict {
		t.Errorf("Status(wrapped conflict) = %d, want 409", got)
	}
}

func TestMessageHidesInternalDetail(t *testing.T) {
	err := errors.New("pq: something leaked a table name")
	if got := Message(err); got != "internal server error" {
		t.Errorf("internal error message leaked: %q", got)
	}
	if got := Message(Validationf("phone must be digits")); got != "phone must be digits" {
		t.Errorf("validation message = %q", got)
	}
}
