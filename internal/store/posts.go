package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akostadinov/chunchun/internal/keycodec"
	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/types"
)

// PostRepository handles persistence for posts. Posts are keyed by the
// encoded PostKey.
type PostRepository struct {
	rw kv.ReadWriter
}

func NewPostRepository(rw kv.ReadWriter) *PostRepository {
	return &PostRepository{rw: rw}
}

func (r *PostRepository) Get(ctx context.Context, key types.PostKey) (types.Post, error) {
	e, err := r.rw.Get(ctx, PostsPartition, keycodec.EncodePost(key))
	if err != nil {
		return types.Post{}, err
	}
	var post types.Post
	if err := json.Unmarshal(e.Value, &post); err != nil {
		return types.Post{}, fmt.Errorf("decode post %s: %w", key, err)
	}
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return r.rw.Put(ctx, PostsPartition, keycodec.EncodePost(post.Key()), data)
}

func (r *PostRepository) Delete(ctx context.Context, key types.PostKey) error {
	return r.rw.Delete(ctx, PostsPartition, keycodec.EncodePost(key))
}
