package accounts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tiktok-notifier/pkg/notifier"
)

func TestParseJSONKeepsOrder(t *testing.T) {
	data := []byte(`{
  "zoe": {"webhook": "https://discord.com/api/webhooks/1/a"},
  "alice": {"webhook": "https://discord.com/api/webhooks/2/b"},
  "mike": {"webhook": " https://discord.com/api/webhooks/3/c "}
}`)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []notifier.Account{
		{ID: "zoe", Webhook: "https://discord.com/api/webhooks/1/a"},
		{ID: "alice", Webhook: "https://discord.com/api/webhooks/2/b"},
		{ID: "mike", Webhook: "https://discord.com/api/webhooks/3/c"},
	}
	if len(got) != len(want) {
		t.Fatalf("Parse() returned %d accounts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Parse()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseJSONEscapes(t *testing.T) {
	data := []byte("\xef\xbb\xbf" + `{
	"some\u006fne": {"webhook": "https:\/\/discord.com\/api\/webhooks\/1\/x"},
	"other": {"webhook": "https://discord.com/api/webhooks/2/y", "note": "ignored"}
}`)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []notifier.Account{
		{ID: "someone", Webhook: "https://discord.com/api/webhooks/1/x"},
		{ID: "other", Webhook: "https://discord.com/api/webhooks/2/y"},
	}
	if len(got) != len(want) {
		t.Fatalf("Parse() returned %d accounts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Parse()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
bob:
  webhook: https://example.com/hook/b
alice:
  webhook: https://example.com/hook/a
`)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "bob" || got[1].ID != "alice" {
		t.Errorf("Parse() = %+v, want bob then alice", got)
	}
}

func TestParseMalformedEntriesAreKept(t *testing.T) {
	data := []byte(`{"alice": "not-an-object", "bob": {}}`)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Parse() returned %d accounts, want 2", len(got))
	}
	for _, a := range got {
		if a.Validate() == nil {
			t.Errorf("Validate() on %+v = nil, want error", a)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"list instead of mapping", `["alice", "bob"]`},
		{"syntax error", `{"alice": {"webhook": }`},
		{"duplicate account", "alice:\n  webhook: https://a\nalice:\n  webhook: https://b\n"},
		{"duplicate account in JSON", `{"alice": {"webhook": "https://a"}, "alice": {"webhook": "https://b"}}`},
		{"trailing data after JSON object", `{"alice": {"webhook": "https://a"}} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("Parse(%q) error = nil, want error", tt.data)
			}
		})
	}
}

func TestFileAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`{"alice": {"webhook": "https://example.com/a"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewFile(path).Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "alice" {
		t.Errorf("Accounts() = %+v", got)
	}
}

func TestFileAccountsMissing(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "missing.json")).Accounts(context.Background())
	if !IsConfigError(err) {
		t.Errorf("Accounts() error = %v, want ConfigError", err)
	}
}
