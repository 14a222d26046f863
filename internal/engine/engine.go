// Package engine drives the account sync lifecycle: load the directory,
// resolve each configured account's credential, construct its provider and
// run the initial import, then serialize all further operations per account.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todosync/internal/accounts"
	"todosync/internal/cache"
	"todosync/internal/credentials"
	"todosync/internal/utils"
	"todosync/provider"
)

// AccountStatus reports the sync state of one account.
type AccountStatus struct {
	Ready       bool
	HasProvider bool
	SyncCount   int
	ErrorCount  int
	LastSync    time.Time
	LastError   string
}

// entry holds the per-account provider and its serialization lock. The
// remote commit step is not scoped to a single object, so no two mutations
// against the same account may be in flight concurrently.
type entry struct {
	mu       sync.Mutex
	provider provider.TaskProvider
	status   AccountStatus
}

// Engine coordinates the directory, credential manager and provider factory.
type Engine struct {
	dir     *accounts.Directory
	creds   *credentials.Manager
	cache   *cache.Store
	timeout time.Duration
	baseURL string

	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables the local snapshot cache.
func WithCache(store *cache.Store) Option {
	return func(e *Engine) {
		e.cache = store
	}
}

// WithBaseURL overrides the remote API base URL (used by tests).
func WithBaseURL(url string) Option {
	return func(e *Engine) {
		e.baseURL = url
	}
}

// WithTimeout bounds each remote operation.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates an engine over the directory and credential manager.
func New(dir *accounts.Directory, creds *credentials.Manager, opts ...Option) *Engine {
	e := &Engine{
		dir:     dir,
		creds:   creds,
		timeout: 30 * time.Second,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Directory returns the account directory the engine drives.
func (e *Engine) Directory() *accounts.Directory {
	return e.dir
}

// Activate loads the directory and brings up every configured account in the
// background. Per-account work stays serialized; accounts come up
// independently of each other.
func (e *Engine) Activate(ctx context.Context) error {
	if err := e.dir.Load(); err != nil {
		return err
	}

	for _, account := range e.dir.Accounts() {
		if !account.NeedsCredential() {
			continue
		}
		account := account
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.BringUp(ctx, account); err != nil {
				utils.Warnf("account %s: %v", account.UID(), err)
			}
		}()
	}
	return nil
}

// Wait blocks until all in-flight account bring-ups finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Deactivate waits for in-flight work and releases resources.
func (e *Engine) Deactivate() error {
	e.wg.Wait()
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// BringUp resolves the account's credential, constructs its provider and
// performs the initial import. Idempotent: an account that already has a
// provider is left alone. A failure leaves the account without a provider
// and is reported; nothing is retried automatically.
func (e *Engine) BringUp(ctx context.Context, account *accounts.Account) error {
	ent := e.entry(account.UID())
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.provider != nil {
		return nil
	}

	if err := e.creds.Resolve(ctx, account.Service(), account.Name(), account.Credential()); err != nil {
		e.recordError(ent, err)
		return err
	}

	cred := account.Credential()
	p, err := provider.New(provider.AccountInfo{
		UID:         account.UID(),
		Name:        account.Name(),
		Service:     account.Service(),
		AccessToken: cred.AccessToken(),
		TokenType:   cred.TokenType(),
	}, provider.WithBaseURL(e.baseURL))
	if err != nil {
		e.recordError(ent, err)
		return err
	}

	importCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := p.Import(importCtx); err != nil {
		e.recordError(ent, err)
		return err
	}

	ent.provider = p
	ent.status.HasProvider = true
	ent.status.SyncCount++
	ent.status.LastSync = time.Now()
	ent.status.LastError = ""

	e.snapshot(ctx, account.UID(), p)
	return nil
}

// Do runs one operation against the account's provider, serialized with all
// other operations on the same account. The operation receives a context
// bounded by the engine's timeout.
func (e *Engine) Do(ctx context.Context, uid string, op func(ctx context.Context, p provider.TaskProvider) error) error {
	ent := e.entry(uid)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.provider == nil {
		return utils.ErrAccountNotReady(uid)
	}

	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := op(opCtx, ent.provider); err != nil {
		e.recordError(ent, err)
		return err
	}

	ent.status.SyncCount++
	ent.status.LastSync = time.Now()
	ent.status.LastError = ""
	e.snapshot(ctx, uid, ent.provider)
	return nil
}

// Provider returns the account's constructed provider, or an error when the
// account has not been brought up.
func (e *Engine) Provider(uid string) (provider.TaskProvider, error) {
	ent := e.entry(uid)
	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.provider == nil {
		return nil, utils.ErrAccountNotReady(uid)
	}
	return ent.provider, nil
}

// RemoveAccount deletes the account from the directory, its snapshot from
// the cache and its provider from the engine.
func (e *Engine) RemoveAccount(ctx context.Context, uid string) error {
	if err := e.dir.DeleteAccount(uid); err != nil {
		return err
	}
	if e.cache != nil {
		if err := e.cache.Delete(ctx, uid); err != nil {
			utils.Warnf("dropping snapshot of account %s: %v", uid, err)
		}
	}
	e.mu.Lock()
	delete(e.entries, uid)
	e.mu.Unlock()
	return nil
}

// Snapshot returns the account's last persisted mirror state. Useful before
// the network import finishes.
func (e *Engine) Snapshot(ctx context.Context, uid string) ([]provider.TaskList, map[string][]provider.Task, error) {
	if e.cache == nil {
		return nil, nil, fmt.Errorf("snapshot cache not configured")
	}
	return e.cache.Load(ctx, uid)
}

// Status reports the per-account sync state.
func (e *Engine) Status() map[string]AccountStatus {
	result := make(map[string]AccountStatus)
	for _, account := range e.dir.Accounts() {
		ent := e.entry(account.UID())
		ent.mu.Lock()
		st := ent.status
		ent.mu.Unlock()
		st.Ready = account.Ready()
		result[account.UID()] = st
	}
	return result
}

func (e *Engine) entry(uid string) *entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[uid]
	if !ok {
		ent = &entry{}
		e.entries[uid] = ent
	}
	return ent
}

func (e *Engine) recordError(ent *entry, err error) {
	ent.status.ErrorCount++
	ent.status.LastError = err.Error()
}

// snapshot persists the provider's mirror. Best effort: a cache failure must
// not fail the remote operation that already succeeded.
func (e *Engine) snapshot(ctx context.Context, uid string, p provider.TaskProvider) {
	if e.cache == nil {
		return
	}
	tasks := make(map[string][]provider.Task)
	lists := p.TaskLists()
	for _, list := range lists {
		tasks[list.ID] = p.Tasks(list.ID)
	}
	if err := e.cache.Save(ctx, uid, lists, tasks); err != nil {
		utils.Warnf("saving snapshot of account %s: %v", uid, err)
	}
}
