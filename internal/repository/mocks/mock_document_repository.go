package mocks

import (
	"context"

	"docsync/internal/model"
	"docsync/internal/repository"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a testify mock. Update applies the mutator to the
// document configured as its first return value, mirroring a real store.
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Put(ctx context.Context, doc *model.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, id string, fn repository.MutateFunc) (*model.Document, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil || args.Error(1) != nil {
		return nil, args.Error(1)
	}
	doc := args.Get(0).(*model.Document).Clone()
	if err := fn(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *MockDocumentRepository) Scan(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
