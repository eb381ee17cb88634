package models

import "time"

// User is the public view of an account. The secret is never part of it.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	About    string `json:"about"`
}

// Post is the public view of a publication.
type Post struct {
	ID       string    `json:"postId"`
	AuthorID string    `json:"userId"`
	Text     string    `json:"text"`
	Created  time.Time `json:"dateTime"`
}

type Follow struct {
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
}

type EventKind string

const (
	EventAccountRegistered EventKind = "account_registered"
	EventFollowed          EventKind = "followed"
	EventPublished         EventKind = "published"
)

// Event is one committed mutation of the chat registry, as carried on the
// broker and kept in the journal. Seq orders events causally.
type Event struct {
	Seq        uint64    `json:"seq"`
	Kind       EventKind `json:"kind"`
	At         time.Time `json:"at"`
	AccountID  string    `json:"account_id"`
	Username   string    `json:"username,omitempty"`
	SecretHash string    `json:"secret_hash,omitempty"`
	About      string    `json:"about,omitempty"`
	FolloweeID string    `json:"followee_id,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Valid reports whether the event carries what its kind needs to be replayed.
func (e Event) Valid() bool {
	if e.Seq == 0 || e.AccountID == "" {
		return false
	}
	switch e.Kind {
	case EventAccountRegistered:
		return e.Username != ""
	case EventFollowed:
		return e.FolloweeID != ""
	case EventPublished:
		return !e.At.IsZero()
	default:
		return false
	}
}
