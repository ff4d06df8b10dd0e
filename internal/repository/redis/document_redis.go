// Package redis stores documents as JSON values in Redis. A sorted set of
// IDs, kept next to the values in the same transactions, drives paging.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docsync/internal/model"
	"docsync/internal/repository"
)

// maxTxRetries bounds optimistic-lock retries in Update.
const maxTxRetries = 16

// DocumentRedis implements repository.DocumentRepository on top of a Redis client.
// Each document lives under prefix+id; the ID index lives under "idx:"+prefix.
type DocumentRedis struct {
	client *redis.Client
	prefix string
	index  string
}

// NewDocumentRedis connects to redisURL and verifies the connection.
func NewDocumentRedis(redisURL, prefix string) (*DocumentRedis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewDocumentRedisWithClient(client, prefix), nil
}

// NewDocumentRedisWithClient creates a store from an existing Redis client.
func NewDocumentRedisWithClient(client *redis.Client, prefix string) *DocumentRedis {
	return &DocumentRedis{client: client, prefix: prefix, index: "idx:" + prefix}
}

var _ repository.DocumentRepository = (*DocumentRedis)(nil)

func (r *DocumentRedis) key(id string) string {
	return r.prefix + id
}

func decode(b []byte) (*model.Document, error) {
	var d model.Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &d, nil
}

func (r *DocumentRedis) Put(ctx context.Context, doc *model.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(doc.ID), b, 0)
		pipe.ZAdd(ctx, r.index, redis.Z{Member: doc.ID})
		return nil
	})
	if err != nil {
		return repository.Unavailable("put", err)
	}
	return nil
}

func (r *DocumentRedis) Get(ctx context.Context, id string) (*model.Document, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Unavailable("get", err)
	}
	return decode(b)
}

// Delete uses GETDEL so the returned record is exactly the one removed.
func (r *DocumentRedis) Delete(ctx context.Context, id string) (*model.Document, error) {
	var getDel *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		getDel = pipe.GetDel(ctx, r.key(id))
		pipe.ZRem(ctx, r.index, id)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, repository.Unavailable("delete", err)
	}
	b, err := getDel.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Unavailable("delete", err)
	}
	return decode(b)
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another writer got there first.
func (r *DocumentRedis) Update(ctx context.Context, id string, fn repository.MutateFunc) (*model.Document, error) {
	key := r.key(id)

	var (
		out       *model.Document
		mutateErr error
	)
	txf := func(tx *redis.Tx) error {
		out, mutateErr = nil, nil

		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		doc, err := decode(b)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			mutateErr = err
			return nil
		}
		next, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			out = doc
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, repository.Unavailable("update", err)
		}
		if mutateErr != nil {
			return nil, mutateErr
		}
		return out, nil
	}
	return nil, repository.Unavailable("update", fmt.Errorf("too much contention on %s", key))
}

// Scan pages through the ID index in byte order; the token is the last ID of the previous page.
func (r *DocumentRedis) Scan(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	after, err := repository.DecodeToken(pq.Token)
	if err != nil {
		return nil, err
	}
	limit := pq.Limit
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}

	lower := "-"
	if after != "" {
		lower = "(" + after
	}
	ids, err := r.client.ZRangeByLex(ctx, r.index, &redis.ZRangeBy{
		Min:   lower,
		Max:   "+",
		Count: int64(limit + 1),
	}).Result()
	if err != nil {
		return nil, repository.Unavailable("scan", err)
	}

	res := &repository.PageResult[model.Document]{}
	if len(ids) > limit {
		ids = ids[:limit]
		res.NextToken = repository.EncodeToken(ids[limit-1])
	}
	res.Items = make([]model.Document, 0, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, repository.Unavailable("scan mget", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between ZRANGEBYLEX and MGET.
			continue
		}
		d, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, *d)
	}
	return res, nil
}

func (r *DocumentRedis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return repository.Unavailable("ping", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *DocumentRedis) Close() error {
	return r.client.Close()
}
