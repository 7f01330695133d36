// Package booking records table reservations.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/storefront/internal/validation"
)

const dateLayout = "2006-01-02"

type Booking struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	PartySize       int       `json:"party_size"`
	Date            time.Time `json:"booking_date"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Request is the booking form.
// swagger:model BookingRequest
type Request struct {
	Name            string `json:"name"             validate:"required,max=15"     example:"Ana"`
	Phone           string `json:"phone"            validate:"required,numeric,len=10" example:"5551234567"`
	Email           string `json:"email"            validate:"required,email"      example:"ana@example.com"`
	PartySize       int    `json:"party_size"       validate:"required,gte=1,lte=50" example:"4"`
	Date            string `json:"booking_date"     validate:"required"            example:"2026-10-20"`
	SpecialRequests string `json:"special_requests" validate:"max=500"`
}

type Repository interface {
	Create(ctx context.Context, b *Booking) error
}

var ErrDateInPast = errors.New("booking date is in the past")

type Service struct {
	repo  Repository
	loc   *time.Location
	clock func() time.Time
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, clock: time.Now}
}

// Book validates the form and stores the reservation. Field problems come back as *validation.Error.
func (s *Service) Book(ctx context.Context, req Request) (*Booking, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(dateLayout, req.Date, s.loc)
	if err != nil {
		return nil, validation.Field("booking_date", "must be a date formatted YYYY-MM-DD")
	}
	now := s.clock().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if day.Before(today) {
		return nil, validation.Field("booking_date", ErrDateInPast.Error())
	}

	b := &Booking{
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		PartySize:       req.PartySize,
		Date:            day,
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
		CreatedAt:       s.clock(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}
	return b, nil
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Create(ctx context.Context, b *Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO bookings (name, phone, email, party_size, booking_date, special_requests, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, b.Name, b.Phone, b.Email, b.PartySize, b.Date, b.SpecialRequests, b.CreatedAt).Scan(&b.ID)
}

type MemRepo struct {
	mu       sync.Mutex
	bookings []Booking
}

func NewMemRepo() *MemRepo { return &MemRepo{} }

func (m *MemRepo) Create(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = int64(len(m.bookings) + 1)
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *MemRepo) All() []Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Booking(nil), m.bookings...)
}
