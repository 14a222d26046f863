// Package accounts maintains the durable registry of linked service
// accounts: loading them from the persistent store, tracking per-account
// readiness, and keeping every field change written through immediately.
package accounts

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"todosync/internal/utils"
)

// ErrAccountNotFound is returned when an operation addresses a uid with no
// matching account.
var ErrAccountNotFound = errors.New("account not found")

// Directory is the registry of linked accounts. Order is insertion order and
// carries no meaning. The directory is ready iff every configured account is
// ready (vacuously true when empty).
type Directory struct {
	store *Store

	mu       sync.Mutex
	accounts []*Account
	ready    bool
	loaded   bool
	onReady  []func(bool)
}

// NewDirectory creates an empty directory over the store. Call Load to
// populate it.
func NewDirectory(store *Store) *Directory {
	return &Directory{store: store, ready: true}
}

// Load populates the directory from the persistent store, one account per
// record. Idempotent: a second call is a no-op. A missing or corrupt store
// is treated as empty (the store self-heals on read).
func (d *Directory) Load() error {
	d.mu.Lock()
	if d.loaded {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	records, err := d.store.Load()
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.loaded {
		d.mu.Unlock()
		return nil
	}
	for _, rec := range records {
		d.registerLocked(newAccount(rec))
	}
	d.loaded = true
	d.mu.Unlock()

	d.recompute()
	return nil
}

// CreateAccount generates a fresh uid, persists an empty record under it and
// registers a new account with empty fields.
func (d *Directory) CreateAccount() (*Account, error) {
	uid := uuid.New().String()
	if err := d.store.Create(uid); err != nil {
		return nil, err
	}

	account := newAccount(Record{UID: uid})
	d.mu.Lock()
	d.registerLocked(account)
	d.mu.Unlock()

	d.recompute()
	return account, nil
}

// DeleteAccount removes the account sharing the uid from both the store and
// the in-memory collection. Unknown uids are a reported error, never a
// crash.
func (d *Directory) DeleteAccount(uid string) error {
	d.mu.Lock()
	index := -1
	for i, a := range d.accounts {
		if a.UID() == uid {
			index = i
			break
		}
	}
	if index < 0 {
		d.mu.Unlock()
		return ErrAccountNotFound
	}
	d.mu.Unlock()

	if err := d.store.Delete(uid); err != nil {
		return err
	}

	d.mu.Lock()
	for i, a := range d.accounts {
		if a.UID() == uid {
			d.accounts = append(d.accounts[:i], d.accounts[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	d.recompute()
	return nil
}

// Account returns the account with the given uid.
func (d *Directory) Account(uid string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.accounts {
		if a.UID() == uid {
			return a, nil
		}
	}
	return nil, ErrAccountNotFound
}

// Accounts returns the registered accounts in insertion order.
func (d *Directory) Accounts() []*Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Account, len(d.accounts))
	copy(out, d.accounts)
	return out
}

// Ready reports the aggregate readiness.
func (d *Directory) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// OnReady registers a callback fired synchronously when the aggregate
// readiness changes.
func (d *Directory) OnReady(fn func(bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReady = append(d.onReady, fn)
}

// registerLocked wires an account into the directory: field changes are
// persisted write-through, and readiness changes trigger a full rescan.
func (d *Directory) registerLocked(account *Account) {
	account.OnChange(d.onAccountChange)
	account.OnReady(func(*Account) {
		d.recompute()
	})
	d.accounts = append(d.accounts, account)
}

// onAccountChange persists a changed field immediately. Persistence faults
// are recovered locally (logged, never surfaced to the caller); the store
// self-heals on the next read. Service and active changes also feed the
// aggregate readiness.
func (d *Directory) onAccountChange(account *Account, field Field) {
	if err := d.store.SetField(account.UID(), string(field), account.persistedValue(field)); err != nil {
		utils.Warnf("persisting %s of account %s: %v", field, account.UID(), err)
	}
	if field == FieldService || field == FieldActive {
		d.recompute()
	}
}

// recompute re-scans the collection and updates the aggregate readiness:
// true iff every configured account is ready.
func (d *Directory) recompute() {
	d.mu.Lock()
	ready := true
	for _, a := range d.accounts {
		if a.NeedsCredential() && !a.Ready() {
			ready = false
			break
		}
	}
	if ready == d.ready {
		d.mu.Unlock()
		return
	}
	d.ready = ready
	subs := append([]func(bool){}, d.onReady...)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(ready)
	}
}
