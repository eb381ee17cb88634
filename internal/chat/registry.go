// Package chat holds accounts, their publishers, and the wall aggregation over
// followed publishers. It performs no I/O and never logs; every failure is
// returned to the caller as an *Error.
package chat

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"example.com/openchat/internal/credentials"
	"example.com/openchat/internal/moderation"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Observer is told about every committed mutation, after the registry has
// released its locks. Seq values are unique and follow causal order.
type Observer interface {
	Registered(seq uint64, account Account)
	Followed(seq uint64, follower, followee Account)
	Published(author Account, publication Publication)
}

// Registry owns accounts and binds each one to exactly one Publisher.
type Registry struct {
	hasher credentials.Hasher
	filter *moderation.Filter

	mu       sync.RWMutex
	byName   map[string]*Publisher
	byID     map[string]*Publisher
	table    []*Publisher // indexed by handle
	observer Observer

	seq atomic.Uint64
}

type Option func(*Registry)

// WithHasher replaces the default argon2id hasher.
func WithHasher(h credentials.Hasher) Option {
	return func(r *Registry) { r.hasher = h }
}

// WithFilter replaces the default moderation filter.
func WithFilter(f *moderation.Filter) Option {
	return func(r *Registry) { r.filter = f }
}

// WithObserver attaches an observer from the start.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		hasher: credentials.Default(),
		filter: moderation.Default(),
		byName: make(map[string]*Publisher),
		byID:   make(map[string]*Publisher),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe attaches o, replacing any previous observer. Pass nil to detach.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

// Register creates an account and its empty publisher.
func (r *Registry) Register(name, secret, about string) (Account, error) {
	if strings.TrimSpace(name) == "" {
		return Account{}, ErrBlankName
	}
	if r.HasUserNamed(name) {
		return Account{}, ErrDuplicateAccount
	}

	hash, err := r.hasher.Hash(secret)
	if err != nil {
		return Account{}, &Error{Kind: KindInternal, Msg: "can not hash secret: " + err.Error()}
	}
	return r.insert(uuid.NewString(), name, hash, about)
}

// Restore registers an account whose secret was hashed earlier, keeping its id.
// Used when rebuilding a registry from a journal.
func (r *Registry) Restore(id, name, secretHash, about string) (Account, error) {
	if strings.TrimSpace(name) == "" {
		return Account{}, ErrBlankName
	}
	if id == "" {
		id = uuid.NewString()
	}
	return r.insert(id, name, secretHash, about)
}

func (r *Registry) insert(id, name, hash, about string) (Account, error) {
	r.mu.Lock()
	if _, ok := r.byName[name]; ok {
		r.mu.Unlock()
		return Account{}, ErrDuplicateAccount
	}
	if _, ok := r.byID[id]; ok {
		r.mu.Unlock()
		return Account{}, ErrDuplicateAccount
	}

	account := Account{ID: id, Name: name, About: about, secretHash: hash}
	p := newPublisher(uint64(len(r.table)), account, r)
	r.table = append(r.table, p)
	r.byName[name] = p
	r.byID[id] = p
	seq := r.nextSeq()
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer.Registered(seq, account)
	}
	return account, nil
}

// Authenticate checks secret against the account registered under name.
func (r *Registry) Authenticate(name, secret string) (Account, error) {
	p, err := r.PublisherFor(name)
	if err != nil {
		return Account{}, err
	}
	ok, err := r.hasher.Verify(secret, p.account.secretHash)
	if err != nil || !ok {
		return Account{}, ErrInvalidCredentials
	}
	return p.account, nil
}

// PublisherFor finds the publisher paired with the account named name.
func (r *Registry) PublisherFor(name string) (*Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return p, nil
}

// PublisherByID finds the publisher paired with the account id.
func (r *Registry) PublisherByID(id string) (*Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return p, nil
}

func (r *Registry) AccountByID(id string) (Account, error) {
	p, err := r.PublisherByID(id)
	if err != nil {
		return Account{}, err
	}
	return p.account, nil
}

func (r *Registry) HasUsers() bool {
	return r.NumberOfUsers() > 0
}

func (r *Registry) NumberOfUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}

func (r *Registry) HasUserNamed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Follow makes followerName follow followeeName.
func (r *Registry) Follow(followerName, followeeName string) error {
	follower, err := r.PublisherFor(followerName)
	if err != nil {
		return err
	}
	followee, err := r.PublisherFor(followeeName)
	if err != nil {
		return err
	}
	return follower.Follow(followee)
}

// Publish publishes message for authorName at the given instant.
func (r *Registry) Publish(authorName, message string, at time.Time) (Publication, error) {
	p, err := r.PublisherFor(authorName)
	if err != nil {
		return Publication{}, err
	}
	return p.Publish(message, at)
}

func (r *Registry) Timeline(name string) ([]Publication, error) {
	p, err := r.PublisherFor(name)
	if err != nil {
		return nil, err
	}
	return p.Timeline(), nil
}

func (r *Registry) Wall(name string) ([]Publication, error) {
	p, err := r.PublisherFor(name)
	if err != nil {
		return nil, err
	}
	return p.Wall(), nil
}

// Followees lists the accounts name follows, in follow order.
func (r *Registry) Followees(name string) ([]Account, error) {
	p, err := r.PublisherFor(name)
	if err != nil {
		return nil, err
	}
	return accountsOf(p.Followees()), nil
}

func accountsOf(publishers []*Publisher) []Account {
	return lo.Map(publishers, func(p *Publisher, _ int) Account {
		return p.account
	})
}

// Sequence returns the last sequence number handed out.
func (r *Registry) Sequence() uint64 {
	return r.seq.Load()
}

// AdvanceSequence makes sure future sequence numbers are greater than floor.
func (r *Registry) AdvanceSequence(floor uint64) {
	for {
		cur := r.seq.Load()
		if cur >= floor || r.seq.CompareAndSwap(cur, floor) {
			return
		}
	}
}

func (r *Registry) nextSeq() uint64 {
	return r.seq.Add(1)
}

func (r *Registry) publishersAt(handles []uint64) []*Publisher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Publisher, 0, len(handles)+1)
	for _, h := range handles {
		out = append(out, r.table[h])
	}
	return out
}

func (r *Registry) currentObserver() Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observer
}

func (r *Registry) notifyFollowed(seq uint64, follower, followee Account) {
	if o := r.currentObserver(); o != nil {
		o.Followed(seq, follower, followee)
	}
}

func (r *Registry) notifyPublished(author Account, pub Publication) {
	if o := r.currentObserver(); o != nil {
		o.Published(author, pub)
	}
}
