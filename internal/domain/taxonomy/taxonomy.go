// Package taxonomy administers categories and brands.
package taxonomy

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// Repository persists categories and brands. CreateTaxon and UpdateTaxon
// return a *catalog.ConflictError when the name is already taken within the
// kind, ignoring case.
type Repository interface {
	CreateTaxon(ctx context.Context, t *catalog.Taxon) error
	UpdateTaxon(ctx context.Context, t *catalog.Taxon) error
	GetTaxon(ctx context.Context, kind catalog.TaxonKind, id string) (*catalog.Taxon, error)
	// FindTaxonByName matches names case-insensitively.
	FindTaxonByName(ctx context.Context, kind catalog.TaxonKind, name string) (*catalog.Taxon, error)
	// ListTaxa returns every entry of a kind, newest first.
	ListTaxa(ctx context.Context, kind catalog.TaxonKind) ([]catalog.Taxon, error)
}

type nameInput struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

// Service creates, renames, lists and toggles categories and brands.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a taxonomy Service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a listed entry.
func (s *Service) Create(ctx context.Context, kind catalog.TaxonKind, name string) (*catalog.Taxon, error) {
	name = strings.TrimSpace(name)
	if err := catalog.Validate(nameInput{Name: name}); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, kind, name, ""); err != nil {
		return nil, err
	}

	t := &catalog.Taxon{
		Kind:      kind,
		ID:        uuid.NewString(),
		Name:      name,
		Status:    catalog.StatusListed,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateTaxon(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "create %s", kind)
	}

	zctx.From(ctx).Info("Taxon created",
		zap.String("kind", string(kind)),
		zap.String("id", t.ID),
		zap.String("name", t.Name),
	)
	return t, nil
}

// Rename changes the name of an entry.
func (s *Service) Rename(ctx context.Context, kind catalog.TaxonKind, id, name string) (*catalog.Taxon, error) {
	name = strings.TrimSpace(name)
	if err := catalog.Validate(nameInput{Name: name}); err != nil {
		return nil, err
	}

	t, err := s.repo.GetTaxon(ctx, kind, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", kind)
	}
	if err := s.ensureUnique(ctx, kind, name, id); err != nil {
		return nil, err
	}

	t.Name = name
	if err := s.repo.UpdateTaxon(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "update %s", kind)
	}
	return t, nil
}

// SetStatus sets the status of an entry, or flips it when status is nil.
func (s *Service) SetStatus(ctx context.Context, kind catalog.TaxonKind, id string, status *catalog.Status) (*catalog.Taxon, error) {
	if status != nil && !status.Valid() {
		return nil, &catalog.ValidationError{Field: "status", Message: "must be one of listed, unlisted"}
	}

	t, err := s.repo.GetTaxon(ctx, kind, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", kind)
	}

	if status != nil {
		t.Status = *status
	} else {
		t.Status = t.Status.Toggle()
	}
	if err := s.repo.UpdateTaxon(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "update %s", kind)
	}

	zctx.From(ctx).Info("Taxon status changed",
		zap.String("kind", string(kind)),
		zap.String("id", t.ID),
		zap.String("status", string(t.Status)),
	)
	return t, nil
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, kind catalog.TaxonKind, id string) (*catalog.Taxon, error) {
	return s.repo.GetTaxon(ctx, kind, id)
}

// List returns every entry of a kind, newest first, regardless of status.
func (s *Service) List(ctx context.Context, kind catalog.TaxonKind) ([]catalog.Taxon, error) {
	taxa, err := s.repo.ListTaxa(ctx, kind)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", kind)
	}
	return taxa, nil
}

// ensureUnique fails when another entry of kind already uses name.
func (s *Service) ensureUnique(ctx context.Context, kind catalog.TaxonKind, name, selfID string) error {
	existing, err := s.repo.FindTaxonByName(ctx, kind, name)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return nil
	case err != nil:
		return errors.Wrapf(err, "find %s by name", kind)
	case existing.ID == selfID:
		return nil
	default:
		return &catalog.ConflictError{Entity: string(kind), Name: name}
	}
}
