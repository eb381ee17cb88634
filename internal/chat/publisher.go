package chat

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Publisher authors publications and follows other publishers of the same registry.
// Followees are held as handles into the registry's publisher table.
type Publisher struct {
	handle   uint64
	account  Account
	registry *Registry

	mu           sync.RWMutex
	publications []Publication // publish order
	ordered      bool          // publications already sorted by (At, Seq)
	followees    []uint64      // follow order
	following    map[uint64]struct{}
}

func newPublisher(handle uint64, account Account, registry *Registry) *Publisher {
	return &Publisher{
		handle:    handle,
		account:   account,
		registry:  registry,
		ordered:   true,
		following: make(map[uint64]struct{}),
	}
}

// Account returns the account this publisher is paired with.
func (p *Publisher) Account() Account {
	return p.account
}

// Follow adds other to the followees. Following oneself or following the same
// publisher twice fails and leaves the followees unchanged.
func (p *Publisher) Follow(other *Publisher) error {
	if other == nil || other.registry != p.registry {
		return ErrUnknownAccount
	}
	if other.handle == p.handle {
		return ErrSelfFollow
	}

	p.mu.Lock()
	if _, ok := p.following[other.handle]; ok {
		p.mu.Unlock()
		return ErrDuplicateFollow
	}
	p.following[other.handle] = struct{}{}
	p.followees = append(p.followees, other.handle)
	seq := p.registry.nextSeq()
	p.mu.Unlock()

	p.registry.notifyFollowed(seq, p.account, other.account)
	return nil
}

// Publish appends a publication stamped with the caller's clock, unless the
// message fails moderation.
func (p *Publisher) Publish(message string, at time.Time) (Publication, error) {
	if !p.registry.filter.IsAcceptable(message) {
		return Publication{}, ErrInappropriateContent
	}

	p.mu.Lock()
	pub := Publication{
		AuthorID: p.account.ID,
		Message:  message,
		At:       at,
		Seq:      p.registry.nextSeq(),
	}
	if n := len(p.publications); n > 0 && pub.Before(p.publications[n-1]) {
		p.ordered = false
	}
	p.publications = append(p.publications, pub)
	p.mu.Unlock()

	p.registry.notifyPublished(p.account, pub)
	return pub, nil
}

// Timeline returns this publisher's own publications, oldest first.
func (p *Publisher) Timeline() []Publication {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timelineLocked()
}

// timelineLocked requires at least a read lock on p.
func (p *Publisher) timelineLocked() []Publication {
	out := slices.Clone(p.publications)
	if !p.ordered {
		slices.SortStableFunc(out, comparePublications)
	}
	return out
}

// Wall merges this publisher's timeline with the timelines of its current followees.
func (p *Publisher) Wall() []Publication {
	for {
		p.mu.RLock()
		handles := slices.Clone(p.followees)
		p.mu.RUnlock()

		members := p.registry.publishersAt(handles)
		members = append(members, p)
		// a fixed lock order keeps mutual followers from deadlocking
		slices.SortFunc(members, func(a, b *Publisher) int {
			return cmp.Compare(a.handle, b.handle)
		})
		for _, m := range members {
			m.mu.RLock()
		}

		if !slices.Equal(handles, p.followees) {
			// followees changed between the snapshot and the locks
			for i := len(members) - 1; i >= 0; i-- {
				members[i].mu.RUnlock()
			}
			continue
		}

		timelines := make([][]Publication, 0, len(members))
		for _, m := range members {
			timelines = append(timelines, m.timelineLocked())
		}
		for i := len(members) - 1; i >= 0; i-- {
			members[i].mu.RUnlock()
		}
		return mergeTimelines(timelines)
	}
}

// Followees returns the followed publishers in follow order.
func (p *Publisher) Followees() []*Publisher {
	p.mu.RLock()
	handles := slices.Clone(p.followees)
	p.mu.RUnlock()
	return p.registry.publishersAt(handles)
}

// HasFollowees reports whether p follows anyone.
func (p *Publisher) HasFollowees() bool {
	return p.NumberOfFollowees() > 0
}

// NumberOfFollowees counts the publishers p follows.
func (p *Publisher) NumberOfFollowees() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.followees)
}

// DoesFollow reports whether other is one of p's followees.
func (p *Publisher) DoesFollow(other *Publisher) bool {
	if other == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.following[other.handle]
	return ok
}

// HasPublications reports whether p has published anything.
func (p *Publisher) HasPublications() bool {
	return p.NumberOfPublications() > 0
}

// NumberOfPublications counts p's own publications.
func (p *Publisher) NumberOfPublications() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.publications)
}
