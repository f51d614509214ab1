package provider

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/MrEthical07/messpass/session"
)

var (
	// ErrAccountNotFound is returned by a Directory for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by Directory.Create for a taken email.
	ErrAccountExists = errors.New("account already exists")
)

// Account is a directory entry.
type Account struct {
	User         session.User
	PasswordHash string
}

// Directory stores accounts for Local.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, acc Account) error
	Update(ctx context.Context, acc Account) error
}

// MemoryDirectory is an in-process Directory. Emails are matched
// case-insensitively.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc := d.byID[id]
	return &acc, nil
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

func (d *MemoryDirectory) Create(_ context.Context, acc Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := emailKey(acc.User.Email)
	if _, ok := d.byEmail[key]; ok {
		return ErrAccountExists
	}
	if _, ok := d.byID[acc.User.ID]; ok {
		return ErrAccountExists
	}
	d.byID[acc.User.ID] = acc
	d.byEmail[key] = acc.User.ID
	return nil
}

// Update replaces an account. The email may not change.
func (d *MemoryDirectory) Update(_ context.Context, acc Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.byID[acc.User.ID]
	if !ok {
		return ErrAccountNotFound
	}
	acc.User.Email = cur.User.Email
	d.byID[acc.User.ID] = acc
	return nil
}
