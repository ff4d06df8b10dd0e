// Package memory is an in-process implementation of repository.DocumentRepository.
package memory

import (
	"context"
	"sort"
	"sync"

	"docsync/internal/model"
	"docsync/internal/repository"
)

// DocumentMemory keeps documents in a map. It is safe for concurrent use.
type DocumentMemory struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

// NewDocumentMemory creates an empty store.
func NewDocumentMemory() *DocumentMemory {
	return &DocumentMemory{docs: make(map[string]*model.Document)}
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

func (r *DocumentMemory) Put(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return repository.Unavailable("put", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *DocumentMemory) Get(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Unavailable("get", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[id].Clone(), nil
}

func (r *DocumentMemory) Delete(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Unavailable("delete", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	delete(r.docs, id)
	return doc, nil
}

func (r *DocumentMemory) Update(ctx context.Context, id string, fn repository.MutateFunc) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Unavailable("update", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.docs[id] = next
	return next.Clone(), nil
}

// Scan walks documents in ID order; the token is the last ID of the previous page.
func (r *DocumentMemory) Scan(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Unavailable("scan", err)
	}
	after, err := repository.DecodeToken(pq.Token)
	if err != nil {
		return nil, err
	}
	limit := pq.Limit
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	res := &repository.PageResult[model.Document]{Items: make([]model.Document, 0, min(limit, len(ids)))}
	for i, id := range ids {
		if i == limit {
			res.NextToken = repository.EncodeToken(ids[i-1])
			break
		}
		res.Items = append(res.Items, *r.docs[id])
	}
	return res, nil
}

func (r *DocumentMemory) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return repository.Unavailable("ping", err)
	}
	return nil
}
