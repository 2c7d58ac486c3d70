// Package wallet keeps local signing wallets for the in-process provider:
// metadata in a JSON file, private keys in the OS keychain.
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet types.
const (
	TypeWatchOnly = "watch-only"
	TypeSigning   = "signing"
)

// Errors.
var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("wallet already exists")
	ErrInvalidKey     = errors.New("invalid private key")
	ErrInvalidName    = errors.New("invalid wallet name")
	ErrWatchOnly      = errors.New("wallet is watch-only")
)

// Wallet holds metadata for a single wallet. The key itself never leaves
// the keystore; KeyRef points at it.
type Wallet struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Type      string `json:"type"`
	KeyRef    string `json:"key_ref,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CommonAddress returns the wallet address as a go-ethereum address.
func (w *Wallet) CommonAddress() common.Address {
	return common.HexToAddress(w.Address)
}

// Store is an interface for persisting wallets.
type Store interface {
	Load() ([]*Wallet, error)
	Save([]*Wallet) error
}

// Manager handles wallet CRUD.
type Manager struct {
	mu      sync.Mutex
	store   Store
	ks      KeystoreBackend
	wallets map[string]*Wallet
	loaded  bool
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithInMemoryStore keeps wallet metadata in memory only.
func WithInMemoryStore() Option {
	return func(m *Manager) {
		m.store = &memStore{}
	}
}

// WithStore sets a custom store.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithKeystore sets the backend private keys are written to.
func WithKeystore(ks KeystoreBackend) Option {
	return func(m *Manager) {
		m.ks = ks
	}
}

// NewManager creates a new wallet manager. Without options it keeps
// metadata in memory and keys in an InMemoryKeystore.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		wallets: make(map[string]*Wallet),
		store:   &memStore{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ks == nil {
		m.ks = NewInMemoryKeystore()
	}
	return m
}

// Keystore returns the backend the manager stores keys in.
func (m *Manager) Keystore() KeystoreBackend { return m.ks }

// Add registers a watch-only (or pre-built) wallet.
func (m *Manager) Add(name string, w *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNew(name); err != nil {
		return err
	}
	if !common.IsHexAddress(w.Address) {
		return fmt.Errorf("wallet %q: invalid address %q", name, w.Address)
	}
	cp := *w
	cp.Name = name
	if cp.Type == "" {
		cp.Type = TypeWatchOnly
	}
	if cp.CreatedAt == "" {
		cp.CreatedAt = m.stamp()
	}
	m.wallets[name] = &cp
	return m.persist()
}

// AddWithKey derives an address from a hex private key, stores the key in
// the keystore and records a signing wallet.
func (m *Manager) AddWithKey(name, hexKey string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNew(name); err != nil {
		return nil, err
	}
	key := normaliseHexKey(hexKey)
	privKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return m.addSigning(name, key, crypto.PubkeyToAddress(privKey.PublicKey))
}

// Generate creates a fresh secp256k1 key and stores it as a signing wallet.
func (m *Manager) Generate(name string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNew(name); err != nil {
		return nil, err
	}
	privKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	key := normaliseHexKey(hexutil.Encode(crypto.FromECDSA(privKey)))
	return m.addSigning(name, key, crypto.PubkeyToAddress(privKey.PublicKey))
}

func (m *Manager) addSigning(name, key string, addr common.Address) (*Wallet, error) {
	ref, err := m.ks.Store(name, key)
	if err != nil {
		return nil, fmt.Errorf("storing key: %w", err)
	}
	w := &Wallet{
		Name:      name,
		Address:   addr.Hex(),
		Type:      TypeSigning,
		KeyRef:    ref,
		CreatedAt: m.stamp(),
	}
	m.wallets[name] = w
	if err := m.persist(); err != nil {
		return nil, err
	}
	cp := *w
	return &cp, nil
}

// Get returns a copy of the wallet with the given name.
func (m *Manager) Get(name string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(); err != nil {
		return nil, err
	}
	w, ok := m.wallets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
	}
	cp := *w
	return &cp, nil
}

// Remove deletes a wallet and, for signing wallets, its keychain entry.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(); err != nil {
		return err
	}
	w, ok := m.wallets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, name)
	}
	if w.KeyRef != "" {
		if err := m.ks.Delete(w.KeyRef); err != nil {
			return fmt.Errorf("deleting key: %w", err)
		}
	}
	delete(m.wallets, name)
	return m.persist()
}

// List returns copies of all wallets sorted by name.
func (m *Manager) List() ([]*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(); err != nil {
		return nil, err
	}
	out := make([]*Wallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetDefault marks a wallet as the default.
func (m *Manager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(); err != nil {
		return err
	}
	if _, ok := m.wallets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, name)
	}
	for _, w := range m.wallets {
		w.IsDefault = w.Name == name
	}
	return m.persist()
}

// Default returns the default wallet. A single stored wallet is the default
// even when it was never marked.
func (m *Manager) Default() (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(); err != nil {
		return nil, err
	}
	for _, w := range m.wallets {
		if w.IsDefault {
			cp := *w
			return &cp, nil
		}
	}
	if len(m.wallets) == 1 {
		for _, w := range m.wallets {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ErrWalletNotFound
}

// Signer returns a signer for the named wallet, or the default wallet when
// name is empty.
func (m *Manager) Signer(name string) (*Signer, error) {
	var (
		w   *Wallet
		err error
	)
	if name == "" {
		w, err = m.Default()
	} else {
		w, err = m.Get(name)
	}
	if err != nil {
		return nil, err
	}
	if w.Type != TypeSigning {
		return nil, fmt.Errorf("%w: %s", ErrWatchOnly, w.Name)
	}
	return NewSigner(w, m.ks), nil
}

func (m *Manager) checkNew(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := m.load(); err != nil {
		return err
	}
	if _, exists := m.wallets[name]; exists {
		return fmt.Errorf("%w: %s", ErrWalletExists, name)
	}
	return nil
}

func (m *Manager) stamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

func (m *Manager) load() error {
	if m.loaded {
		return nil
	}
	wallets, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("loading wallets: %w", err)
	}
	for _, w := range wallets {
		m.wallets[w.Name] = w
	}
	m.loaded = true
	return nil
}

func (m *Manager) persist() error {
	wallets := make([]*Wallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Name < wallets[j].Name })
	if err := m.store.Save(wallets); err != nil {
		return fmt.Errorf("saving wallets: %w", err)
	}
	return nil
}

type memStore struct {
	wallets []*Wallet
}

func (s *memStore) Load() ([]*Wallet, error) {
	return s.wallets, nil
}

func (s *memStore) Save(wallets []*Wallet) error {
	s.wallets = wallets
	return nil
}

// JSONStore persists wallets to a JSON file.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed wallet store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Load() ([]*Wallet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wallets []*Wallet
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return wallets, nil
}

func (s *JSONStore) Save(wallets []*Wallet) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(wallets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
