package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedKey is returned when a string cannot be parsed back into a PostKey.
var ErrMalformedKey = errors.New("malformed post key")

// PostKey identifies a post by its owner and the time it was made.
// Keys are ordered by timestamp first and owner second.
type PostKey struct {
	// Owner is the username of the author.
	Owner string `json:"owner"`

	// Timestamp is the creation time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// NewPostKey builds a key for a post made by owner at t.
func NewPostKey(owner string, t time.Time) PostKey {
	return PostKey{Owner: owner, Timestamp: t.UnixMilli()}
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to
// or after other.
func (k PostKey) Compare(other PostKey) int {
	switch {
	case k.Timestamp < other.Timestamp:
		return -1
	case k.Timestamp > other.Timestamp:
		return 1
	}
	return strings.Compare(k.Owner, other.Owner)
}

// Less reports whether k sorts before other.
func (k PostKey) Less(other PostKey) bool {
	return k.Compare(other) < 0
}

// Time returns the post timestamp as a time.Time.
func (k PostKey) Time() time.Time {
	return time.UnixMilli(k.Timestamp)
}

// String returns the canonical storage form: lowercase hex timestamp, a colon,
// then the owner. Keys of one period share a prefix, which keeps them close in
// ordered stores.
func (k PostKey) String() string {
	return strconv.FormatInt(k.Timestamp, 16) + ":" + k.Owner
}

// ParsePostKey is the inverse of PostKey.String. It splits at the first colon.
func ParsePostKey(s string) (PostKey, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return PostKey{}, fmt.Errorf("%w: %q has no separator", ErrMalformedKey, s)
	}
	ts, err := strconv.ParseInt(s[:idx], 16, 64)
	if err != nil {
		return PostKey{}, fmt.Errorf("%w: %q: %v", ErrMalformedKey, s, err)
	}
	return PostKey{Owner: s[idx+1:], Timestamp: ts}, nil
}

// Post is a single message. Posts never change once written.
type Post struct {
	// Owner is the username of the author.
	Owner string `json:"owner"`

	// Message is the text of the post.
	Message string `json:"message"`

	// Timestamp is the creation time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// NewPost creates a post made by owner at t.
func NewPost(owner, message string, t time.Time) Post {
	return Post{Owner: owner, Message: message, Timestamp: t.UnixMilli()}
}

// Key returns the identifier of the post.
func (p Post) Key() PostKey {
	return PostKey{Owner: p.Owner, Timestamp: p.Timestamp}
}

// DisplayPost is the read-only projection of a post shown in feeds.
// It is built on demand and never stored.
type DisplayPost struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Key returns the identifier of the post the entry was built from.
func (d DisplayPost) Key() PostKey {
	return PostKey{Owner: d.Username, Timestamp: d.Timestamp}
}
