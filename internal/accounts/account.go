package accounts

import (
	"fmt"
	"sync"

	"todosync/internal/credentials"
)

// Field names an observable account attribute. The string form doubles as
// the persisted key.
type Field string

const (
	FieldName    Field = keyName
	FieldService Field = keyService
	FieldActive  Field = keyActive
)

// Account is one linked external-service identity. The uid is generated once
// and immutable; it is the ownership key both for persistence and for
// matching in-memory entries. Every other attribute is observable: a change
// fires the registered callbacks synchronously, and the owning Directory
// persists the new value write-through.
//
// An Account exclusively owns one Credential for its whole lifetime.
type Account struct {
	uid string

	mu      sync.Mutex
	name    string
	service string
	active  bool
	ready   bool

	cred *credentials.Credential

	onChange []func(*Account, Field)
	onReady  []func(*Account)
}

// newAccount constructs an account from a persisted record. The credential
// begins not-ready; resolving it is what eventually flips the account ready.
func newAccount(rec Record) *Account {
	a := &Account{
		uid:     rec.UID,
		name:    rec.Name,
		service: rec.Service,
		active:  rec.Active,
		cred:    credentials.NewCredential(),
	}
	a.cred.OnReady(func() {
		a.setReady(true)
	})
	return a
}

// UID returns the immutable account identifier.
func (a *Account) UID() string { return a.uid }

func (a *Account) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// Service returns the configured service kind; empty until configured.
func (a *Account) Service() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.service
}

func (a *Account) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Ready reports whether the account's credential has been resolved.
func (a *Account) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Credential returns the account's credential handle.
func (a *Account) Credential() *credentials.Credential {
	return a.cred
}

// NeedsCredential reports whether the account is configured to sync: a
// service kind is set and the account is active. Only such accounts hold up
// the directory's aggregate readiness.
func (a *Account) NeedsCredential() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.service != "" && a.active
}

func (a *Account) SetName(name string) {
	a.mu.Lock()
	if a.name == name {
		a.mu.Unlock()
		return
	}
	a.name = name
	a.mu.Unlock()
	a.fireChange(FieldName)
}

func (a *Account) SetService(service string) {
	a.mu.Lock()
	if a.service == service {
		a.mu.Unlock()
		return
	}
	a.service = service
	a.mu.Unlock()
	a.fireChange(FieldService)
}

func (a *Account) SetActive(active bool) {
	a.mu.Lock()
	if a.active == active {
		a.mu.Unlock()
		return
	}
	a.active = active
	a.mu.Unlock()
	a.fireChange(FieldActive)
}

// OnChange registers a callback fired synchronously after a tracked field
// changes.
func (a *Account) OnChange(fn func(*Account, Field)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = append(a.onChange, fn)
}

// OnReady registers a callback fired synchronously when the account's
// readiness changes.
func (a *Account) OnReady(fn func(*Account)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onReady = append(a.onReady, fn)
}

func (a *Account) fireChange(field Field) {
	a.mu.Lock()
	subs := append([]func(*Account, Field){}, a.onChange...)
	a.mu.Unlock()
	for _, fn := range subs {
		fn(a, field)
	}
}

func (a *Account) setReady(ready bool) {
	a.mu.Lock()
	if a.ready == ready {
		a.mu.Unlock()
		return
	}
	a.ready = ready
	subs := append([]func(*Account){}, a.onReady...)
	a.mu.Unlock()
	for _, fn := range subs {
		fn(a)
	}
}

// persistedValue renders a field the way the store encodes it.
func (a *Account) persistedValue(field Field) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch field {
	case FieldName:
		return a.name
	case FieldService:
		return a.service
	case FieldActive:
		if a.active {
			return "1"
		}
		return "0"
	}
	return ""
}

func (a *Account) String() string {
	return fmt.Sprintf("<Account %s on %s>", a.Name(), a.Service())
}
