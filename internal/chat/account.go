package chat

import "time"

// Account is a registered identity. It is never mutated after registration.
type Account struct {
	ID    string
	Name  string
	About string

	secretHash string
}

// IsNamed compares names exactly, case included.
func (a Account) IsNamed(name string) bool {
	return a.Name == name
}

// SecretHash is the stored credential hash, never the plain secret.
func (a Account) SecretHash() string {
	return a.secretHash
}

// Publication is one authored message. Seq is drawn from the registry at publish
// time and breaks ties between publications sharing the same instant.
type Publication struct {
	AuthorID string
	Message  string
	At       time.Time
	Seq      uint64
}

// Before orders publications by time, then by publish sequence.
func (p Publication) Before(other Publication) bool {
	if !p.At.Equal(other.At) {
		return p.At.Before(other.At)
	}
	return p.Seq < other.Seq
}

func comparePublications(a, b Publication) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}
