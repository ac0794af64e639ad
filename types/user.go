package types

import "slices"

// User represents an account in the system together with its posts and
// watch relations. Relations are stored as usernames only, never as
// references to other records.
type User struct {
	// Username is the unique login name and the primary key of the record.
	Username string `json:"username"`

	// Name is the display name shown next to posts.
	Name string `json:"name"`

	// Surname is the user's family name.
	Surname string `json:"surname"`

	// Whoami is a short free-form description of the user.
	Whoami string `json:"whoami"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"password_hash"`

	// Avatar is the object key of the user's picture in avatar storage.
	Avatar string `json:"avatar"`

	// Posts lists the keys of the user's own posts, oldest first.
	Posts []PostKey `json:"posts"`

	// Watching holds the usernames this user watches.
	Watching []string `json:"watching"`

	// Watchers holds the usernames watching this user.
	Watchers []string `json:"watchers"`

	// Version is the store version the record was read at. It is used for
	// compare-and-replace and is not serialized.
	Version int64 `json:"-"`
}

// IsWatching reports whether u watches username.
func (u *User) IsWatching(username string) bool {
	return slices.Contains(u.Watching, username)
}

// IsWatchedBy reports whether username watches u.
func (u *User) IsWatchedBy(username string) bool {
	return slices.Contains(u.Watchers, username)
}

// AddWatching records that u watches username. It returns false if the
// relation already existed.
func (u *User) AddWatching(username string) bool {
	if u.IsWatching(username) {
		return false
	}
	u.Watching = append(u.Watching, username)
	return true
}

// RemoveWatching drops username from the watch-list. It returns false if
// username was not watched.
func (u *User) RemoveWatching(username string) bool {
	var removed bool
	u.Watching, removed = remove(u.Watching, username)
	return removed
}

// AddWatcher records that username watches u. It returns false if the
// relation already existed.
func (u *User) AddWatcher(username string) bool {
	if u.IsWatchedBy(username) {
		return false
	}
	u.Watchers = append(u.Watchers, username)
	return true
}

// RemoveWatcher drops username from the watchers. It returns false if
// username was not a watcher.
func (u *User) RemoveWatcher(username string) bool {
	var removed bool
	u.Watchers, removed = remove(u.Watchers, username)
	return removed
}

// AddPost appends key to the user's own posts.
func (u *User) AddPost(key PostKey) {
	u.Posts = append(u.Posts, key)
}

// RemovePost drops key from the user's own posts. It returns false if the
// key was not present.
func (u *User) RemovePost(key PostKey) bool {
	idx := slices.Index(u.Posts, key)
	if idx < 0 {
		return false
	}
	u.Posts = slices.Delete(u.Posts, idx, idx+1)
	return true
}

func remove(list []string, value string) ([]string, bool) {
	idx := slices.Index(list, value)
	if idx < 0 {
		return list, false
	}
	return slices.Delete(list, idx, idx+1), true
}

// Profile is the public projection of a user. It never carries the
// password hash or the relation lists themselves.
type Profile struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Whoami   string `json:"whoami"`
	Avatar   string `json:"avatar"`
	Posts    int    `json:"posts"`
	Watching int    `json:"watching"`
	Watchers int    `json:"watchers"`
}

// Profile returns the public projection of u.
func (u *User) Profile() Profile {
	return Profile{
		Username: u.Username,
		Name:     u.Name,
		Surname:  u.Surname,
		Whoami:   u.Whoami,
		Avatar:   u.Avatar,
		Posts:    len(u.Posts),
		Watching: len(u.Watching),
		Watchers: len(u.Watchers),
	}
}
