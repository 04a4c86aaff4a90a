package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rickgao/gamelink/internal/auth"
)

// File stores credentials for any number of profiles in one YAML file.
// Writes go to a temp file that is renamed over the target.
type File struct {
	path    string
	profile string
	mu      sync.Mutex
}

type fileContents struct {
	Profiles map[string]auth.Credentials `yaml:"profiles"`
}

// NewFile creates a file-backed store. The file is created on first Save.
func NewFile(path, profile string) (*File, error) {
	if path == "" {
		return nil, errors.New("credentials file path is required")
	}
	return &File{path: filepath.Clean(path), profile: profile}, nil
}

func (f *File) read() (fileContents, error) {
	var contents fileContents
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return contents, nil
	}
	if err != nil {
		return contents, fmt.Errorf("read credentials file: %w", err)
	}
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return contents, fmt.Errorf("parse credentials file: %w", err)
	}
	return contents, nil
}

func (f *File) write(contents fileContents) error {
	data, err := yaml.Marshal(contents)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

func (f *File) Load(ctx context.Context) (auth.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return auth.Credentials{}, err
	}
	creds, ok := contents.Profiles[f.profile]
	if !ok || creds.IsZero() {
		return auth.Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (f *File) Save(ctx context.Context, creds auth.Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return err
	}
	if contents.Profiles == nil {
		contents.Profiles = make(map[string]auth.Credentials)
	}
	contents.Profiles[f.profile] = creds
	return f.write(contents)
}

func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := contents.Profiles[f.profile]; !ok {
		return nil
	}
	delete(contents.Profiles, f.profile)
	return f.write(contents)
}

func (f *File) Close() error { return nil }
