package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/password"
)

var (
	// ErrUsernameTaken is returned by Add for a username already present.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrInvalidMember is returned by Add for an empty username.
	ErrInvalidMember = errors.New("member username is required")
)

// Member is one directory entry as supplied to Add.
type Member struct {
	ID       string
	Username string
	Password string
	Staff    bool
}

type entry struct {
	ident staffauth.Identity
	hash  string
}

// Memory is an in-process staffauth.UserDirectory backed by argon2id hashes.
// Usernames match case-insensitively.
type Memory struct {
	hasher *password.Argon2
	logger *zap.Logger

	mu         sync.RWMutex
	byID       map[string]*entry
	byUsername map[string]*entry

	// verified against when the username is unknown so both paths pay one hash
	dummyHash string
}

// NewMemory returns an empty directory. A nil logger logs nothing.
func NewMemory(hasher *password.Argon2, logger *zap.Logger) (*Memory, error) {
	if hasher == nil {
		return nil, errors.New("directory: hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("directory: dummy hash: %w", err)
	}
	return &Memory{
		hasher:     hasher,
		logger:     logger.With(zap.String("component", "directory")),
		byID:       make(map[string]*entry),
		byUsername: make(map[string]*entry),
		dummyHash:  dummy,
	}, nil
}

// Add registers m and returns its identity. An empty ID gets a generated one.
func (d *Memory) Add(m Member) (staffauth.Identity, error) {
	key := usernameKey(m.Username)
	if key == "" {
		return staffauth.Identity{}, ErrInvalidMember
	}
	hash, err := d.hasher.Hash(m.Password)
	if err != nil {
		return staffauth.Identity{}, fmt.Errorf("directory: hash %q: %w", m.Username, err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byUsername[key]; ok {
		return staffauth.Identity{}, fmt.Errorf("%w: %s", ErrUsernameTaken, m.Username)
	}
	if old, ok := d.byID[m.ID]; ok {
		delete(d.byUsername, usernameKey(old.ident.Username))
	}
	e := &entry{
		ident: staffauth.Identity{ID: m.ID, Username: m.Username, Staff: m.Staff},
		hash:  hash,
	}
	d.byID[m.ID] = e
	d.byUsername[key] = e
	return e.ident, nil
}

// Remove deletes id. Outstanding credentials for it stop authenticating.
func (d *Memory) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	delete(d.byID, id)
	delete(d.byUsername, usernameKey(e.ident.Username))
	return true
}

// SetStaff flips the staff flag of id.
func (d *Memory) SetStaff(id string, staff bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.byID[id]
	if ok {
		e.ident.Staff = staff
	}
	return ok
}

// Len reports the number of members.
func (d *Memory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func (d *Memory) LookupIdentity(_ context.Context, id string) (staffauth.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return staffauth.Identity{}, fmt.Errorf("%w: %s", staffauth.ErrIdentityNotFound, id)
	}
	return e.ident, nil
}

func (d *Memory) VerifyPassword(ctx context.Context, username, plain string) (staffauth.Identity, error) {
	if err := ctx.Err(); err != nil {
		return staffauth.Identity{}, err
	}

	d.mu.RLock()
	e, ok := d.byUsername[usernameKey(username)]
	var ident staffauth.Identity
	hash := d.dummyHash
	if ok {
		ident, hash = e.ident, e.hash
	}
	d.mu.RUnlock()

	match, err := d.hasher.Verify(plain, hash)
	if err != nil {
		// stored hashes come from Hash, so this is corruption
		d.logger.Error("stored hash unreadable", zap.String("staff_id", ident.ID), zap.Error(err))
		return staffauth.Identity{}, fmt.Errorf("directory: %w", err)
	}
	if !ok || !match {
		return staffauth.Identity{}, staffauth.ErrInvalidLogin
	}

	d.rehashIfWeak(ident.ID, plain, hash)
	return ident, nil
}

func (d *Memory) rehashIfWeak(id, plain, hash string) {
	need, err := d.hasher.NeedsRehash(hash)
	if err != nil || !need {
		return
	}
	fresh, err := d.hasher.Hash(plain)
	if err != nil {
		d.logger.Warn("rehash failed", zap.String("staff_id", id), zap.Error(err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.byID[id]; ok && e.hash == hash {
		e.hash = fresh
		d.logger.Debug("password rehashed", zap.String("staff_id", id))
	}
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
