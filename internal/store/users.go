package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/types"
)

// UserRepository handles persistence for users. It works on any
// kv.ReadWriter, so the same code runs directly against a store or inside
// a kv.Tx.
type UserRepository struct {
	rw kv.ReadWriter
}

func NewUserRepository(rw kv.ReadWriter) *UserRepository {
	return &UserRepository{rw: rw}
}

// Get returns the user with the store version it was read at.
func (r *UserRepository) Get(ctx context.Context, username string) (types.User, error) {
	e, err := r.rw.Get(ctx, UsersPartition, username)
	if err != nil {
		return types.User{}, err
	}
	var user types.User
	if err := json.Unmarshal(e.Value, &user); err != nil {
		return types.User{}, fmt.Errorf("decode user %q: %w", username, err)
	}
	user.Version = e.Version
	return user, nil
}

func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	return r.rw.Exists(ctx, UsersPartition, username)
}

// Create stores a new user, overwriting any record with the same username.
func (r *UserRepository) Create(ctx context.Context, user types.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.rw.Put(ctx, UsersPartition, user.Username, data)
}

// Update replaces the user if it is still at user.Version.
func (r *UserRepository) Update(ctx context.Context, user types.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.rw.Replace(ctx, UsersPartition, user.Username, data, user.Version)
}

func (r *UserRepository) Delete(ctx context.Context, username string) error {
	return r.rw.Delete(ctx, UsersPartition, username)
}
