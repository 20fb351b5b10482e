// Package storage handles persistence of the seen-post state.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"tiktok-notifier/pkg/notifier"
)

// PersistError indicates the state could not be written.
type PersistError struct {
	Err      error
	Location string
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist state to %s: %v", e.Location, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError checks if an error is a PersistError.
func IsPersistError(err error) bool {
	var persistErr *PersistError
	return errors.As(err, &persistErr)
}

// Store reads and writes the whole state as one JSON document, either to a
// local file or to a Cloud Storage object.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	object    string
}

// NewLocal creates a store backed by a file on the local filesystem.
func NewLocal(path string, logger *slog.Logger) *Store {
	return &Store{localPath: path, logger: logger}
}

// NewCloud creates a store backed by a Cloud Storage object.
func NewCloud(client *storage.Client, bucket, object string, logger *slog.Logger) *Store {
	return &Store{client: client, bucket: bucket, object: object, logger: logger}
}

// Location describes where the state lives, for logs.
func (s *Store) Location() string {
	if s.localPath != "" {
		return s.localPath
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Load reads the full state. A missing or unparseable document yields an empty
// state; only genuine I/O failures are returned as errors.
func (s *Store) Load(ctx context.Context) (notifier.State, error) {
	data, err := s.read(ctx)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrObjectNotExist) {
		s.logger.Info("No saved state found, starting empty", "location", s.Location())
		return notifier.State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var state notifier.State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Saved state is corrupt, starting empty", "location", s.Location(), "error", err)
		return notifier.State{}, nil
	}
	if state == nil {
		state = notifier.State{}
	}

	s.logger.Info("State loaded", "location", s.Location(), "accounts", len(state))
	return state, nil
}

// Save overwrites the stored state. Failures are returned as *PersistError.
func (s *Store) Save(ctx context.Context, state notifier.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &PersistError{Location: s.Location(), Err: fmt.Errorf("marshal state: %w", err)}
	}

	if err := s.write(ctx, data); err != nil {
		return &PersistError{Location: s.Location(), Err: err}
	}

	s.logger.Info("State saved", "location", s.Location(), "accounts", len(state), "bytes", len(data))
	return nil
}

func (s *Store) read(ctx context.Context) ([]byte, error) {
	// Local filesystem storage
	if s.localPath != "" {
		return os.ReadFile(s.localPath)
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	var missing bool
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
			if openErr != nil {
				// Don't retry on "not found" errors
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					missing = true
					return retry.Unrecoverable(openErr)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state load after error", "attempt", n, "object", s.object, "error", retryErr)
		}),
	)
	if missing {
		return nil, storage.ErrObjectNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

func (s *Store) write(ctx context.Context, data []byte) error {
	// Local filesystem storage: write a sibling temp file and rename it over the
	// target so readers never see a partial document.
	if s.localPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.localPath), 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		tmp := s.localPath + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		if err := os.Rename(tmp, s.localPath); err != nil {
			return fmt.Errorf("replace state file: %w", err)
		}
		return nil
	}

	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state save after error", "attempt", n, "object", s.object, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}
	return nil
}
