package credentials

import (
	"context"
	"errors"
	"testing"
)

func TestResolveFromKeyring(t *testing.T) {
	mock := NewMockKeyring()
	if err := mock.Set("todosync-todoist", "work", "stored-token"); err != nil {
		t.Fatal(err)
	}
	m := NewManager(WithKeyring(mock))

	cred := NewCredential()
	if cred.Ready() {
		t.Fatal("fresh credential must start not-ready")
	}
	if err := m.Resolve(context.Background(), "todoist", "work", cred); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !cred.Ready() || cred.AccessToken() != "stored-token" {
		t.Errorf("credential = ready=%t token=%q", cred.Ready(), cred.AccessToken())
	}
	if cred.Source() != SourceKeyring {
		t.Errorf("source = %s, want keyring", cred.Source())
	}
	if cred.TokenType() != "Bearer" {
		t.Errorf("token type = %q, want Bearer", cred.TokenType())
	}
}

func TestResolveFromEnvironment(t *testing.T) {
	t.Setenv("TODOSYNC_TODOIST_TOKEN", "env-token")
	m := NewManager(WithKeyring(NewMockKeyring()))

	cred := NewCredential()
	if err := m.Resolve(context.Background(), "todoist", "work", cred); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cred.AccessToken() != "env-token" || cred.Source() != SourceEnvironment {
		t.Errorf("credential = token=%q source=%s", cred.AccessToken(), cred.Source())
	}
}

func TestKeyringTakesPriorityOverEnvironment(t *testing.T) {
	t.Setenv("TODOSYNC_TODOIST_TOKEN", "env-token")
	mock := NewMockKeyring()
	if err := mock.Set("todosync-todoist", "work", "stored-token"); err != nil {
		t.Fatal(err)
	}
	m := NewManager(WithKeyring(mock))

	cred := NewCredential()
	if err := m.Resolve(context.Background(), "todoist", "work", cred); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cred.Source() != SourceKeyring {
		t.Errorf("source = %s, want keyring", cred.Source())
	}
}

func TestResolveIdempotent(t *testing.T) {
	mock := NewMockKeyring()
	if err := mock.Set("todosync-todoist", "work", "first-token"); err != nil {
		t.Fatal(err)
	}
	m := NewManager(WithKeyring(mock))

	cred := NewCredential()
	if err := m.Resolve(context.Background(), "todoist", "work", cred); err != nil {
		t.Fatal(err)
	}

	// A second resolve must not re-read sources or overwrite the token.
	if err := mock.Set("todosync-todoist", "work", "second-token"); err != nil {
		t.Fatal(err)
	}
	if err := m.Resolve(context.Background(), "todoist", "work", cred); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if cred.AccessToken() != "first-token" {
		t.Errorf("token = %q, want first-token (resolution happens once)", cred.AccessToken())
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Setenv("TODOSYNC_TODOIST_TOKEN", "")
	m := NewManager(WithKeyring(NewMockKeyring()))

	cred := NewCredential()
	err := m.Resolve(context.Background(), "todoist", "work", cred)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if cred.Ready() {
		t.Error("credential must stay not-ready on failure")
	}
}

func TestResolveNoService(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	err := m.Resolve(context.Background(), "", "work", NewCredential())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestOnReadyFiresOnResolution(t *testing.T) {
	cred := NewCredential()
	fired := 0
	cred.OnReady(func() { fired++ })

	mock := NewMockKeyring()
	if err := mock.Set("todosync-todoist", "work", "tok"); err != nil {
		t.Fatal(err)
	}
	m := NewManager(WithKeyring(mock))
	if err := m.Resolve(context.Background(), "todoist", "work", cred); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("OnReady fired %d times, want 1", fired)
	}

	// Registering after resolution fires immediately.
	late := 0
	cred.OnReady(func() { late++ })
	if late != 1 {
		t.Errorf("late OnReady fired %d times, want 1", late)
	}
}

func TestStoreAndDelete(t *testing.T) {
	mock := NewMockKeyring()
	m := NewManager(WithKeyring(mock))
	ctx := context.Background()

	if err := m.Store(ctx, "todoist", "work", "manual-token"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	got, err := mock.Get("todosync-todoist", "work")
	if err != nil || got != "manual-token" {
		t.Errorf("stored token = %q err=%v", got, err)
	}

	if err := m.Delete(ctx, "todoist", "work"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Deleting again is not an error.
	if err := m.Delete(ctx, "todoist", "work"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}
