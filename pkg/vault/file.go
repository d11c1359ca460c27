package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/crypto"
)

const fileFormatVersion = 1

type fileContents struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// FileProvider keeps all bundles in one JSON file, each entry sealed with
// AES-256-GCM and bound to its key. The file is rewritten atomically with mode 0600.
type FileProvider struct {
	path string
	key  string

	mu     sync.Mutex
	sealer *crypto.Sealer
}

var _ Provider = (*FileProvider)(nil)

func NewFileProvider(path, key string) *FileProvider {
	return &FileProvider{path: path, key: key}
}

func (p *FileProvider) Name() string { return "file" }

// Init derives the sealing key and checks that an existing file is readable.
func (p *FileProvider) Init(ctx context.Context) error {
	sealer, err := crypto.NewSealer(p.key)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealer = sealer
	_, err = p.load()
	return err
}

func (p *FileProvider) load() (*fileContents, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileContents{Version: fileFormatVersion, Entries: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault file: %w", err)
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("vault file %s is corrupt", p.path)
	}
	if contents.Version != fileFormatVersion {
		return nil, fmt.Errorf("vault file %s has unsupported version %d", p.path, contents.Version)
	}
	if contents.Entries == nil {
		contents.Entries = map[string]string{}
	}
	return &contents, nil
}

func (p *FileProvider) save(contents *fileContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write vault file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

func (p *FileProvider) Put(ctx context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	contents, err := p.load()
	if err != nil {
		return err
	}
	sealed, err := p.sealer.Seal(payload, key)
	if err != nil {
		return err
	}
	contents.Entries[key] = sealed
	return p.save(contents)
}

func (p *FileProvider) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	contents, err := p.load()
	if err != nil {
		return nil, false, err
	}
	sealed, ok := contents.Entries[key]
	if !ok {
		return nil, false, nil
	}
	payload, err := p.sealer.Open(sealed, key)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (p *FileProvider) Remove(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	contents, err := p.load()
	if err != nil {
		return false, err
	}
	if _, ok := contents.Entries[key]; !ok {
		return false, nil
	}
	delete(contents.Entries, key)
	return true, p.save(contents)
}
