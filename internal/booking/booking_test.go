package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/storefront/internal/validation"
)

func newService(repo Repository) *Service {
	s := NewService(repo, time.UTC)
	s.clock = func() time.Time { return time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC) }
	return s
}

func validRequest() Request {
	return Request{Name: "Ana", Phone: "5551234567", Email: "ana@example.com", PartySize: 4, Date: "2026-10-17"}
}

func TestBook_TodayIsAllowed(t *testing.T) {
	repo := NewMemRepo()
	b, err := newService(repo).Book(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)
	assert.Len(t, repo.All(), 1)
}

func TestBook_FieldErrors(t *testing.T) {
	cases := map[string]func(*Request){
		"phone":        func(r *Request) { r.Phone = "555123456" },
		"email":        func(r *Request) { r.Email = "ana" },
		"party_size":   func(r *Request) { r.PartySize = 0 },
		"name":         func(r *Request) { r.Name = "" },
		"booking_date": func(r *Request) { r.Date = "17/10/2026" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			repo := NewMemRepo()
			req := validRequest()
			mutate(&req)
			_, err := newService(repo).Book(context.Background(), req)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, field)
			assert.Empty(t, repo.All())
		})
	}
}

func TestBook_PastDate(t *testing.T) {
	req := validRequest()
	req.Date = "2026-10-16"
	_, err := newService(NewMemRepo()).Book(context.Background(), req)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrDateInPast.Error(), verr.Fields["booking_date"])
}

func TestBook_PhoneWithSeparatorsRejected(t *testing.T) {
	req := validRequest()
	req.Phone = "555-123-45"
	_, err := newService(NewMemRepo()).Book(context.Background(), req)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "phone")
}
