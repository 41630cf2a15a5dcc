package uploads

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/snaptrack/snaptrack/internal/client/repositories/metadata"
	"github.com/snaptrack/snaptrack/internal/common"
	"github.com/snaptrack/snaptrack/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*State, error) {
	return load(ctx, metadata.NewSQLiteRepository(r.db))
}

func (r *SQLiteRepository) Update(ctx context.Context, fn func(s *State) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := metadata.NewSQLiteRepository(tx)

		s, err := load(ctx, kv)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		return save(ctx, kv, s)
	})
}

func load(ctx context.Context, kv metadata.Repository) (*State, error) {
	s := &State{}
	if err := getList(ctx, kv, common.KeyUploadQueue, &s.Queue); err != nil {
		return nil, err
	}
	if err := getList(ctx, kv, common.KeyFailedUploads, &s.Failed); err != nil {
		return nil, err
	}
	return s, nil
}

func save(ctx context.Context, kv metadata.Repository, s *State) error {
	if err := setList(ctx, kv, common.KeyUploadQueue, s.Queue); err != nil {
		return err
	}
	return setList(ctx, kv, common.KeyFailedUploads, s.Failed)
}

func getList[T any](ctx context.Context, kv metadata.Repository, key string, dst *[]T) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func setList[T any](ctx context.Context, kv metadata.Repository, key string, list []T) error {
	if list == nil {
		list = []T{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

var _ Repository = (*SQLiteRepository)(nil)
