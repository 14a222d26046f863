package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"todosync/internal/credentials"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	return NewDirectory(NewStore(filepath.Join(t.TempDir(), "accounts.conf")))
}

// resolveCredential flips an account ready through the credential manager, the
// way the engine does.
func resolveCredential(t *testing.T, account *Account) {
	t.Helper()
	mock := credentials.NewMockKeyring()
	if err := mock.Set("todosync-"+account.Service(), account.Name(), "test-token"); err != nil {
		t.Fatal(err)
	}
	m := credentials.NewManager(credentials.WithKeyring(mock))
	if err := m.Resolve(context.Background(), account.Service(), account.Name(), account.Credential()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
}

func TestDirectoryEmptyIsReady(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !dir.Ready() {
		t.Error("empty directory must be ready (vacuously)")
	}
}

func TestDirectoryLoadIdempotent(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}
	if _, err := dir.CreateAccount(); err != nil {
		t.Fatal(err)
	}
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}
	if got := len(dir.Accounts()); got != 1 {
		t.Errorf("second Load changed account count: %d", got)
	}
}

func TestCreateAccountPersists(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "accounts.conf"))
	dir := NewDirectory(store)
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}

	account, err := dir.CreateAccount()
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if account.UID() == "" {
		t.Fatal("created account has empty uid")
	}
	account.SetName("work")
	account.SetService("todoist")
	account.SetActive(true)

	// A fresh directory over the same store sees the written-through fields.
	reloaded := NewDirectory(store)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Account(account.UID())
	if err != nil {
		t.Fatalf("Account lookup failed: %v", err)
	}
	if got.Name() != "work" || got.Service() != "todoist" || !got.Active() {
		t.Errorf("reloaded account = %s active=%t", got, got.Active())
	}
}

func TestDeleteAccount(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}
	account, err := dir.CreateAccount()
	if err != nil {
		t.Fatal(err)
	}

	if err := dir.DeleteAccount(account.UID()); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if len(dir.Accounts()) != 0 {
		t.Error("account still listed after delete")
	}
	if err := dir.DeleteAccount(account.UID()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("second delete error = %v, want ErrAccountNotFound", err)
	}
	if err := dir.DeleteAccount("nonesuch"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("unknown uid error = %v, want ErrAccountNotFound", err)
	}
}

func TestReadinessTracksConfiguredAccounts(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}

	// An unconfigured account does not hold up readiness.
	blank, err := dir.CreateAccount()
	if err != nil {
		t.Fatal(err)
	}
	if !dir.Ready() {
		t.Error("unconfigured account must not block readiness")
	}

	// Configuring it for sync makes the directory wait for its credential.
	var transitions []bool
	dir.OnReady(func(ready bool) {
		transitions = append(transitions, ready)
	})
	blank.SetName("work")
	blank.SetService("todoist")
	blank.SetActive(true)
	if dir.Ready() {
		t.Error("directory ready while a configured account lacks its credential")
	}

	resolveCredential(t, blank)
	if !dir.Ready() {
		t.Error("directory not ready after credential resolved")
	}
	if len(transitions) < 2 || transitions[len(transitions)-1] != true {
		t.Errorf("readiness transitions = %v, want ...false, true", transitions)
	}
}

func TestReadinessRestoredByDeletingBlocker(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}
	account, err := dir.CreateAccount()
	if err != nil {
		t.Fatal(err)
	}
	account.SetService("todoist")
	account.SetActive(true)
	if dir.Ready() {
		t.Fatal("directory should be blocked")
	}

	if err := dir.DeleteAccount(account.UID()); err != nil {
		t.Fatal(err)
	}
	if !dir.Ready() {
		t.Error("deleting the blocking account must restore readiness")
	}
}

func TestDeactivatedAccountDoesNotBlock(t *testing.T) {
	dir := newTestDirectory(t)
	if err := dir.Load(); err != nil {
		t.Fatal(err)
	}
	account, err := dir.CreateAccount()
	if err != nil {
		t.Fatal(err)
	}
	account.SetService("todoist")
	account.SetActive(true)
	if dir.Ready() {
		t.Fatal("directory should be blocked")
	}

	account.SetActive(false)
	if !dir.Ready() {
		t.Error("inactive account must not block readiness")
	}
}

func TestAccountSetterNoOpDoesNotFire(t *testing.T) {
	account := newAccount(Record{UID: "uid-1", Name: "work"})
	fired := 0
	account.OnChange(func(*Account, Field) { fired++ })

	account.SetName("work")
	if fired != 0 {
		t.Errorf("no-op set fired %d change callbacks", fired)
	}
	account.SetName("home")
	if fired != 1 {
		t.Errorf("set fired %d change callbacks, want 1", fired)
	}
}
