package store

import "github.com/akostadinov/chunchun/internal/kv"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = kv.ErrNotFound

// Partition names used by the repositories.
const (
	UsersPartition   = "users"
	PostsPartition   = "posts"
	AvatarsPartition = "avatars"
)
