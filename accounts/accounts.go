// Package accounts loads the list of monitored accounts from a JSON or YAML file.
//
// The file maps an account ID to its settings:
//
//	{
//	  "someone": {"webhook": "https://discord.com/api/webhooks/..."}
//	}
//
// JSON documents are walked token by token and YAML documents through yaml.v3
// nodes, so both keep the document order of the mapping.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tiktok-notifier/pkg/notifier"
)

// ConfigError indicates the accounts file is missing or malformed.
type ConfigError struct {
	Err  error
	Path string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("accounts config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

type entry struct {
	Webhook string `json:"webhook" yaml:"webhook"`
}

// File reads accounts from a file on every call.
type File struct {
	path string
}

// NewFile returns a source backed by the file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Accounts reads the file and returns its accounts in document order.
func (f *File) Accounts(_ context.Context) ([]notifier.Account, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, &ConfigError{Path: f.path, Err: err}
	}
	accounts, err := Parse(data)
	if err != nil {
		return nil, &ConfigError{Path: f.path, Err: err}
	}
	return accounts, nil
}

// Parse decodes an accounts document. Entries are returned as written, without
// validation, so that the caller can report and skip malformed ones individually.
func Parse(data []byte) ([]notifier.Account, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return parseJSON(trimmed)
	}
	return parseYAML(data)
}

// parseJSON reads the top-level object key by key; json.Unmarshal into a map
// would lose the order.
func parseJSON(data []byte) ([]notifier.Account, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var accounts []notifier.Account
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		id := strings.TrimSpace(tok.(string))
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("offset %d: duplicate account %q", dec.InputOffset(), id)
		}
		seen[id] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("account %q: %w", id, err)
		}
		var e entry
		if v := bytes.TrimSpace(raw); len(v) > 0 && v[0] == '{' {
			if err := json.Unmarshal(v, &e); err != nil {
				return nil, fmt.Errorf("account %q: %w", id, err)
			}
		}
		accounts = append(accounts, notifier.Account{ID: id, Webhook: strings.TrimSpace(e.Webhook)})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode: unexpected data after the top-level object")
	}
	return accounts, nil
}

func parseYAML(data []byte) ([]notifier.Account, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of account IDs", root.Line)
	}

	accounts := make([]notifier.Account, 0, len(root.Content)/2)
	seen := make(map[string]struct{}, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		id := strings.TrimSpace(key.Value)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate account %q", key.Line, id)
		}
		seen[id] = struct{}{}

		var e entry
		if val.Kind == yaml.MappingNode {
			if err := val.Decode(&e); err != nil {
				return nil, fmt.Errorf("line %d: account %q: %w", val.Line, id, err)
			}
		}
		accounts = append(accounts, notifier.Account{ID: id, Webhook: strings.TrimSpace(e.Webhook)})
	}
	return accounts, nil
}
