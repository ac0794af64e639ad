package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps all partitions in the kv_entries table. The schema is
// created by the migrations under internal/db/migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, partition, key string) (Entry, error) {
	const query = `
		SELECT value, version
		FROM kv_entries
		WHERE partition = $1 AND key = $2`
	var e Entry
	err := s.db.QueryRowContext(ctx, query, partition, key).Scan(&e.Value, &e.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (s *PostgresStore) Exists(ctx context.Context, partition, key string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM kv_entries WHERE partition = $1 AND key = $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, partition, key).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) Put(ctx context.Context, partition, key string, value []byte) error {
	return single(ctx, s, Op{Kind: OpPut, Partition: partition, Key: key, Value: value})
}

func (s *PostgresStore) Replace(ctx context.Context, partition, key string, value []byte, version int64) error {
	return single(ctx, s, Op{Kind: OpReplace, Partition: partition, Key: key, Value: value, Version: version})
}

func (s *PostgresStore) Delete(ctx context.Context, partition, key string) error {
	return single(ctx, s, Op{Kind: OpDelete, Partition: partition, Key: key})
}

// Apply runs ops in one SQL transaction.
func (s *PostgresStore) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: postgres: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, op := range ops {
		if err := applyPostgresOp(ctx, tx, op); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyPostgresOp(ctx context.Context, tx *sql.Tx, op Op) error {
	if op.Value == nil {
		op.Value = []byte{}
	}
	switch op.Kind {
	case OpPut:
		const query = `
			INSERT INTO kv_entries (partition, key, value, version)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (partition, key)
			DO UPDATE SET value = EXCLUDED.value, version = kv_entries.version + 1`
		_, err := tx.ExecContext(ctx, query, op.Partition, op.Key, op.Value)
		return err
	case OpReplace:
		const query = `
			UPDATE kv_entries
			SET value = $3, version = version + 1
			WHERE partition = $1 AND key = $2 AND version = $4`
		result, err := tx.ExecContext(ctx, query, op.Partition, op.Key, op.Value, op.Version)
		if err != nil {
			return err
		}
		return checkAffected(ctx, tx, op, result)
	case OpDelete:
		if op.Version == 0 {
			const query = `DELETE FROM kv_entries WHERE partition = $1 AND key = $2`
			_, err := tx.ExecContext(ctx, query, op.Partition, op.Key)
			return err
		}
		const query = `DELETE FROM kv_entries WHERE partition = $1 AND key = $2 AND version = $3`
		result, err := tx.ExecContext(ctx, query, op.Partition, op.Key, op.Version)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrConflict
		}
		return nil
	default:
		return fmt.Errorf("kv: unknown operation kind %d", op.Kind)
	}
}

// checkAffected tells a missing record apart from a stale version when a
// conditional update touched no rows.
func checkAffected(ctx context.Context, tx *sql.Tx, op Op, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM kv_entries WHERE partition = $1 AND key = $2)`
	var exists bool
	if err := tx.QueryRowContext(ctx, query, op.Partition, op.Key).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
