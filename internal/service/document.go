package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsync/internal/model"
	"docsync/internal/repository"
	"docsync/internal/storage"
)

// CreateInput carries the fields accepted by Create. An empty ID asks the service to generate one.
type CreateInput struct {
	ID      string
	Title   string
	Content string
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Title   *string
	Content *string
}

// ListOptions selects a page of documents. Limit == 0 lists everything.
type ListOptions struct {
	Limit int
	Token string
}

// DocumentListResult is the service-level DTO for listed documents.
type DocumentListResult struct {
	Items     []model.Document `json:"documents"`
	Count     int              `json:"count"`
	NextToken string           `json:"nextToken,omitempty"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Create stores a new document stamped with createdAt == updatedAt == now.
	// A caller-supplied ID is used as-is; creating an existing ID overwrites it.
	Create(ctx context.Context, in CreateInput) (*model.Document, error)

	// List returns stored documents, either all of them or one page.
	List(ctx context.Context, opts ListOptions) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Update merges the supplied fields and always advances updatedAt.
	Update(ctx context.Context, id string, in UpdateInput) (*model.Document, error)

	// Delete removes a document and returns it as it was before removal.
	Delete(ctx context.Context, id string) (*model.Document, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	archive storage.Storage
	repo    repository.DocumentRepository
	log     *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewDocumentService constructs a new DocumentService.
// archive may be nil, in which case deleted documents are not archived.
func NewDocumentService(archive storage.Storage, repo repository.DocumentRepository, log *zap.Logger) DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &documentService{
		archive: archive,
		repo:    repo,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// storeError classifies an error coming back from the repository.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrInvalidToken) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// clock returns the current time at the precision every backend round-trips.
func (s *documentService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// stamp returns a timestamp strictly after prev.
func (s *documentService) stamp(prev time.Time) time.Time {
	now := s.clock()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (s *documentService) Create(ctx context.Context, in CreateInput) (*model.Document, error) {
	if in.Title == "" {
		return nil, ErrTitleRequired
	}
	id := in.ID
	if id == "" {
		id = s.newID()
	}
	now := s.clock()
	doc := &model.Document{
		ID:        id,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, doc); err != nil {
		return nil, storeError("create", err)
	}
	return doc, nil
}

// List drains every scan page when no limit is given.
// Duplicate IDs reported across pages are collapsed.
func (s *documentService) List(ctx context.Context, opts ListOptions) (*DocumentListResult, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}

	if opts.Limit > 0 {
		page, err := s.repo.Scan(ctx, repository.PageQuery{Limit: opts.Limit, Token: opts.Token})
		if err != nil {
			return nil, storeError("list", err)
		}
		return &DocumentListResult{Items: page.Items, Count: len(page.Items), NextToken: page.NextToken}, nil
	}

	items := make([]model.Document, 0)
	seen := make(map[string]struct{})
	token := opts.Token
	for {
		page, err := s.repo.Scan(ctx, repository.PageQuery{Token: token})
		if err != nil {
			return nil, storeError("list", err)
		}
		for _, d := range page.Items {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			items = append(items, d)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	return &DocumentListResult{Items: items, Count: len(items)}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError("get", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Update merges and stamps inside the repository's atomic update.
func (s *documentService) Update(ctx context.Context, id string, in UpdateInput) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if in.Title != nil && *in.Title == "" {
		return nil, ErrTitleRequired
	}

	doc, err := s.repo.Update(ctx, id, func(d *model.Document) error {
		if in.Title != nil {
			d.Title = *in.Title
		}
		if in.Content != nil {
			d.Content = *in.Content
		}
		d.UpdatedAt = s.stamp(d.UpdatedAt)
		return nil
	})
	if err != nil {
		return nil, storeError("update", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Delete removes the record, then archives the removed snapshot when an archive is configured.
func (s *documentService) Delete(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, storeError("delete", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}

	if s.archive != nil {
		if err := s.archiveDeleted(ctx, doc); err != nil {
			s.log.Warn("archive_deleted_document_failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
		}
	}
	return doc, nil
}

func (s *documentService) archiveDeleted(ctx context.Context, doc *model.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := storage.DeletedKey(doc.ID, s.now())
	_, err = s.archive.Put(ctx, key, bytes.NewReader(b), storage.PutObjectOptions{
		Size:        int64(len(b)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"document-id": doc.ID,
		},
	})
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
