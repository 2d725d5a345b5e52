package manufacturer

import (
	"context"
	"fmt"
	"strings"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/entity"
	"partscatalog/internal/core/id"
	"partscatalog/internal/core/tx"
	"partscatalog/internal/domain"
	"partscatalog/pkg/logger"
)

// Service provides business logic for manufacturers.
type Service struct {
	repo    Repository
	txm     tx.Manager
	events  domain.EventPublisher
	audit   domain.ChangeRecorder
	history domain.HistoryReader
}

// ServiceConfig configures the manufacturer service.
// Events, Audit and History are optional.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Events    domain.EventPublisher
	Audit     domain.ChangeRecorder
	History   domain.HistoryReader
}

// NewService creates a new manufacturer service.
func NewService(cfg ServiceConfig) *Service {
	txm := cfg.TxManager
	if txm == nil {
		txm = tx.Passthrough{}
	}
	return &Service{
		repo:    cfg.Repo,
		txm:     txm,
		events:  cfg.Events,
		audit:   cfg.Audit,
		history: cfg.History,
	}
}

// List returns one page of manufacturers after applying list defaults.
func (s *Service) List(ctx context.Context, q ListQuery) (*domain.ListResult[*Manufacturer], error) {
	q = q.Normalize()
	result, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list manufacturers: %w", err)
	}
	return result, nil
}

// Search matches name or display name. limit defaults to 10 and is capped at 50.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*Manufacturer, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	q := ListQuery{
		Filter: ListFilter{Search: query, Status: StatusAll},
		Sort:   ListSort{Field: SortByName, Order: domain.SortAsc},
		Page:   domain.PageRequest{Page: 1, Limit: limit},
	}
	result, err := s.repo.List(ctx, q.Normalize())
	if err != nil {
		return nil, fmt.Errorf("search manufacturers: %w", err)
	}
	return result.Items, nil
}

// GetByPublicID returns (nil, nil) when the manufacturer does not exist.
func (s *Service) GetByPublicID(ctx context.Context, publicID string) (*Manufacturer, error) {
	if !id.Valid(publicID) {
		return nil, nil
	}
	m, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("get manufacturer: %w", err)
	}
	return m, nil
}

// GetBySlug returns (nil, nil) when no manufacturer has the slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Manufacturer, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	m, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get manufacturer by slug: %w", err)
	}
	return m, nil
}

// Create registers a new manufacturer.
// The name check is best effort; the unique index rejects concurrent duplicates.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*Manufacturer, error) {
	name := strings.TrimSpace(in.Name)

	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check manufacturer name: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateName(name)
	}

	country, err := NormalizeCountryCode(in.CountryCode)
	if err != nil {
		return nil, err
	}
	logo, err := normalizeLogoID(in.LogoImageID)
	if err != nil {
		return nil, err
	}

	m := &Manufacturer{
		Identity:          entity.Identity{PublicID: id.New()},
		Name:              name,
		DisplayName:       strings.TrimSpace(in.DisplayName),
		Slug:              Slugify(name),
		LogoImagePublicID: logo,
		CountryCode:       country,
		Description:       trimmed(in.Description),
		IsActive:          true,
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if in.IsVerified != nil {
		m.IsVerified = *in.IsVerified
	}
	m.SetCreatedBy(actorID)

	if err := m.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, m); err != nil {
			return fmt.Errorf("create manufacturer: %w", err)
		}
		return s.recordWrite(ctx, m.PublicID, EventCreated, ActionCreate, m.Snapshot())
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manufacturer created", "id", m.PublicID, "slug", m.Slug)
	return m, nil
}

// UpdateByPublicID applies a partial update. Blank optional fields are
// dropped rather than written as empty values.
// Returns (nil, nil) when the manufacturer does not exist.
func (s *Service) UpdateByPublicID(ctx context.Context, publicID string, in UpdateInput, actorID string) (*Manufacturer, error) {
	if !id.Valid(publicID) {
		return nil, nil
	}

	country, err := NormalizeCountryCode(in.CountryCode)
	if err != nil {
		return nil, err
	}
	logo, err := normalizeLogoID(in.LogoImageID)
	if err != nil {
		return nil, err
	}

	changes := Changes{
		DisplayName:       trimmed(in.DisplayName),
		LogoImagePublicID: logo,
		CountryCode:       country,
		Description:       trimmed(in.Description),
		IsActive:          in.IsActive,
		IsVerified:        in.IsVerified,
		UpdatedBy:         actorPtr(actorID),
	}
	return s.update(ctx, publicID, changes, EventUpdated)
}

// Verify marks the manufacturer as verified. Already verified rows are
// updated again.
func (s *Service) Verify(ctx context.Context, publicID string, actorID string) (*Manufacturer, error) {
	if !id.Valid(publicID) {
		return nil, nil
	}
	verified := true
	changes := Changes{IsVerified: &verified, UpdatedBy: actorPtr(actorID)}
	return s.update(ctx, publicID, changes, EventVerified)
}

func (s *Service) update(ctx context.Context, publicID string, changes Changes, eventType string) (*Manufacturer, error) {
	var updated *Manufacturer
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		found, err := s.repo.UpdateByPublicID(ctx, publicID, changes)
		if err != nil {
			return fmt.Errorf("update manufacturer: %w", err)
		}
		if !found {
			return nil
		}

		updated, err = s.repo.FindByPublicID(ctx, publicID)
		if err != nil {
			return fmt.Errorf("reload manufacturer: %w", err)
		}
		if updated == nil {
			return nil
		}
		return s.recordWrite(ctx, updated.PublicID, eventType, ActionUpdate, changes.Map())
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ToggleStatus sets the active flag. Returns (nil, nil) when the
// manufacturer does not exist.
func (s *Service) ToggleStatus(ctx context.Context, publicID string, isActive bool, actorID string) (*Manufacturer, error) {
	m, err := s.GetByPublicID(ctx, publicID)
	if err != nil || m == nil {
		return nil, err
	}

	updatedBy := actorPtr(actorID)
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		updatedAt, ok, err := s.repo.SetActive(ctx, m.ID, isActive, updatedBy)
		if err != nil {
			return fmt.Errorf("set manufacturer status: %w", err)
		}
		if !ok {
			m = nil
			return nil
		}

		m.IsActive = isActive
		m.UpdatedAt = updatedAt
		if updatedBy != nil {
			m.UpdatedBy = updatedBy
		}
		return s.recordWrite(ctx, m.PublicID, EventStatusChanged, ActionUpdate, map[string]any{"isActive": isActive})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteByPublicID applies the delete policy: soft delete while models
// reference the manufacturer, hard delete otherwise. A missing manufacturer
// is reported as {deleted: false}, not as an error.
func (s *Service) DeleteByPublicID(ctx context.Context, publicID string) (DeleteResult, error) {
	pid, err := id.Parse(publicID)
	if err != nil {
		return DeleteResult{Reason: "not found"}, nil
	}

	var result DeleteResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.repo.DeleteByPublicID(ctx, publicID)
		if err != nil {
			return fmt.Errorf("delete manufacturer: %w", err)
		}
		if !result.Deleted {
			return nil
		}
		return s.recordWrite(ctx, pid, EventDeleted, ActionDelete, map[string]any{"soft": result.Soft})
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if result.Deleted {
		logger.Info(ctx, "manufacturer deleted", "id", publicID, "soft", result.Soft)
	}
	return result, nil
}

// BatchUpdateStatus toggles each id in order, outside any shared transaction.
// A failing id is recorded and the batch continues.
func (s *Service) BatchUpdateStatus(ctx context.Context, publicIDs []string, isActive bool, actorID string) BatchResult {
	result := BatchResult{Success: []string{}, Failed: []string{}}
	for _, publicID := range publicIDs {
		m, err := s.ToggleStatus(ctx, publicID, isActive, actorID)
		if err != nil {
			logger.Warn(ctx, "batch status update failed", "id", publicID, "error", err)
			result.Failed = append(result.Failed, publicID)
			continue
		}
		if m == nil {
			result.Failed = append(result.Failed, publicID)
			continue
		}
		result.Success = append(result.Success, publicID)
	}
	return result
}

// History returns the audit trail of a manufacturer, newest first.
func (s *Service) History(ctx context.Context, publicID string, limit int) ([]domain.AuditRecord, error) {
	if s.history == nil {
		return nil, apperror.NewUnavailable("Audit trail")
	}
	pid, err := id.Parse(publicID)
	if err != nil {
		return nil, apperror.NewNotFound(EntityName, publicID)
	}
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	records, err := s.history.History(ctx, AggregateType, pid, limit)
	if err != nil {
		return nil, fmt.Errorf("manufacturer history: %w", err)
	}
	return records, nil
}

// recordWrite stores the outbox event and the audit entry inside the
// current transaction.
func (s *Service) recordWrite(ctx context.Context, publicID id.ID, eventType, action string, changes map[string]any) error {
	if s.events != nil {
		if err := s.events.Publish(ctx, newEvent(eventType, publicID, changes)); err != nil {
			return fmt.Errorf("publish %s: %w", eventType, err)
		}
	}
	if s.audit != nil {
		if err := s.audit.RecordChange(ctx, AggregateType, publicID, action, changes); err != nil {
			return fmt.Errorf("audit %s: %w", eventType, err)
		}
	}
	return nil
}

func actorPtr(actorID string) *string {
	if actorID == "" {
		return nil
	}
	return &actorID
}
