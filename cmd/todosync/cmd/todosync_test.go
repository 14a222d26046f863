package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig points every path at the test's temp dir so commands never
// touch the real XDG locations.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "accounts_path: " + filepath.Join(dir, "accounts.conf") + "\n" +
		"cache_path: " + filepath.Join(dir, "snapshots.db") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--config", configPath)
	code := Execute(args, &stdout, &stderr, &Config{Stdin: strings.NewReader("")})
	return stdout.String(), stderr.String(), code
}

func TestAccountsAddAndList(t *testing.T) {
	configPath := writeTestConfig(t)

	stdout, stderr, code := run(t, configPath, "accounts", "add", "--name", "work", "--service", "todoist")
	if code != 0 {
		t.Fatalf("add exited %d: %s", code, stderr)
	}
	uid := strings.TrimSpace(stdout)
	if uid == "" {
		t.Fatal("add printed no uid")
	}

	stdout, stderr, code = run(t, configPath, "accounts", "list")
	if code != 0 {
		t.Fatalf("list exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, uid) || !strings.Contains(stdout, "todoist") {
		t.Errorf("list output missing account:\n%s", stdout)
	}
}

func TestAccountsAddUnknownService(t *testing.T) {
	configPath := writeTestConfig(t)

	_, stderr, code := run(t, configPath, "accounts", "add", "--service", "nonesuch")
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown service")
	}
	if !strings.Contains(stderr, "unknown service") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAccountsRemove(t *testing.T) {
	configPath := writeTestConfig(t)

	stdout, _, code := run(t, configPath, "accounts", "add", "--name", "work")
	if code != 0 {
		t.Fatal("add failed")
	}
	uid := strings.TrimSpace(stdout)

	_, stderr, code := run(t, configPath, "accounts", "remove", uid)
	if code != 0 {
		t.Fatalf("remove exited %d: %s", code, stderr)
	}

	stdout, _, _ = run(t, configPath, "accounts", "list")
	if strings.Contains(stdout, uid) {
		t.Errorf("removed account still listed:\n%s", stdout)
	}
}

func TestAccountsRemoveUnknown(t *testing.T) {
	configPath := writeTestConfig(t)

	_, stderr, code := run(t, configPath, "accounts", "remove", "nonesuch")
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown uid")
	}
	if !strings.Contains(stderr, "account not found") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestStatusListsAccounts(t *testing.T) {
	configPath := writeTestConfig(t)

	stdout, _, code := run(t, configPath, "accounts", "add", "--name", "work", "--service", "todoist")
	if code != 0 {
		t.Fatal("add failed")
	}
	uid := strings.TrimSpace(stdout)

	stdout, stderr, code := run(t, configPath, "status")
	if code != 0 {
		t.Fatalf("status exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, uid) || !strings.Contains(stdout, "ready=false") {
		t.Errorf("status output:\n%s", stdout)
	}
}
