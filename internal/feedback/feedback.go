// Package feedback stores and lists customer reviews.
package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/storefront/internal/validation"
)

type Feedback struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Rating    int       `json:"rating"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Request is the feedback form.
// swagger:model FeedbackRequest
type Request struct {
	Name    string `json:"name"    validate:"required,max=15"         example:"Ana"`
	Email   string `json:"email"   validate:"required,email"          example:"ana@example.com"`
	Phone   string `json:"phone"   validate:"omitempty,phone"         example:"5551234567"`
	Rating  int    `json:"rating"  validate:"required,gte=1,lte=5"    example:"5"`
	Message string `json:"message" validate:"required,max=2000"       example:"Great pasta"`
}

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	List(ctx context.Context, limit, offset int) ([]Feedback, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

func (s *Service) Submit(ctx context.Context, req Request) (*Feedback, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	f := &Feedback{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Rating:    req.Rating,
		Message:   req.Message,
		CreatedAt: s.clock(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}
	return f, nil
}

// List returns the newest reviews first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Feedback, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Create(ctx context.Context, f *Feedback) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO feedback (user_name, email, phone, rating, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, f.Name, f.Email, f.Phone, f.Rating, f.Message, f.CreatedAt).Scan(&f.ID)
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Feedback, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, user_name, email, phone, rating, message, created_at
		FROM feedback ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.Phone, &f.Rating, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type MemRepo struct {
	mu    sync.RWMutex
	items []Feedback
}

func NewMemRepo() *MemRepo { return &MemRepo{} }

func (m *MemRepo) Create(_ context.Context, f *Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = int64(len(m.items) + 1)
	m.items = append(m.items, *f)
	return nil
}

func (m *MemRepo) List(_ context.Context, limit, offset int) ([]Feedback, error) {
	m.mu.RLock()
	all := append([]Feedback(nil), m.items...)
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return []Feedback{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
