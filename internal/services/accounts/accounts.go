// Package accounts manages upload accounts: lifecycle, sealed platform
// credentials, routing rules, and the daily rate-limit counters.
//
// Credentials are sealed with NaCl secretbox before they touch the
// database. The sealed blob is opaque to every other component — only
// this manager can open it, and only when the uploader actually needs
// the credentials.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// Store is the slice of the database the account manager needs.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	UpdateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ResetDailyUploadCounts(ctx context.Context) (int, error)
	CreateRoutingRule(ctx context.Context, rule *models.RoutingRule) error
	ListRoutingRules(ctx context.Context) ([]models.RoutingRule, error)
	DeleteRoutingRule(ctx context.Context, id string) error
}

// Manager owns account lifecycle and credential sealing.
type Manager struct {
	store Store
	key   [32]byte
}

// New creates an account manager. keyHex must be a 64-char hex string
// (32 bytes) — the secretbox key.
func New(store Store, keyHex string) (*Manager, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("credentials key is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("credentials key must be 32 bytes, got %d", len(raw))
	}

	m := &Manager{store: store}
	copy(m.key[:], raw)
	return m, nil
}

// CreateAccount registers a new upload account (without credentials).
func (m *Manager) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	account := &models.Account{
		ID:               uuid.NewString()[:12],
		Platform:         req.Platform,
		Name:             req.Name,
		Handle:           req.Handle,
		ContentStrategy:  req.Strategy,
		DailyUploadLimit: req.DailyLimit,
		IsActive:         true,
	}
	if account.ContentStrategy == "" {
		account.ContentStrategy = models.StrategyMixed
	}

	if err := m.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("👤 Created %s account %s (%s)", account.Platform, account.Name, account.ID)
	return account, nil
}

// UpdateAccount applies the non-nil fields of the request.
func (m *Manager) UpdateAccount(ctx context.Context, id string, req models.UpdateAccountRequest) (*models.Account, error) {
	account, err := m.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	// Go Pattern: Pointer fields distinguish "not provided" from the
	// zero value — a nil field means "leave it alone".
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Handle != nil {
		account.Handle = *req.Handle
	}
	if req.Strategy != nil {
		account.ContentStrategy = *req.Strategy
	}
	if req.DailyLimit != nil {
		account.DailyUploadLimit = *req.DailyLimit
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	if err := m.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// SetCredentials seals the credential map and stores the blob.
func (m *Manager) SetCredentials(ctx context.Context, id string, credentials map[string]string) error {
	account, err := m.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	// secretbox requires a unique nonce per seal; it is prepended to the
	// ciphertext so Open can recover it.
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	account.CredentialsEncrypted = secretbox.Seal(nonce[:], plaintext, &nonce, &m.key)

	if err := m.store.UpdateAccount(ctx, account); err != nil {
		return err
	}
	log.Printf("🔐 Stored credentials for account %s", id)
	return nil
}

// GetCredentials opens the account's sealed credential blob.
func (m *Manager) GetCredentials(ctx context.Context, id string) (map[string]string, error) {
	account, err := m.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.HasCredentials() {
		return nil, fmt.Errorf("account %s has no stored credentials", id)
	}

	blob := account.CredentialsEncrypted
	if len(blob) < 24 {
		return nil, fmt.Errorf("credential blob for %s is corrupt", id)
	}

	var nonce [24]byte
	copy(nonce[:], blob[:24])
	plaintext, ok := secretbox.Open(nil, blob[24:], &nonce, &m.key)
	if !ok {
		return nil, fmt.Errorf("failed to open credentials for %s (wrong key?)", id)
	}

	var credentials map[string]string
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return credentials, nil
}

// Deactivate flips an account inactive; the router and dequeue both skip
// inactive accounts immediately.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	return m.setActive(ctx, id, false)
}

// Activate re-enables an account.
func (m *Manager) Activate(ctx context.Context, id string) error {
	return m.setActive(ctx, id, true)
}

func (m *Manager) setActive(ctx context.Context, id string, active bool) error {
	account, err := m.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	account.IsActive = active
	return m.store.UpdateAccount(ctx, account)
}

// RecordError stores the latest upload error on the account for the
// operator to see.
func (m *Manager) RecordError(ctx context.Context, id, errText string) error {
	account, err := m.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	account.Error = errText
	return m.store.UpdateAccount(ctx, account)
}

// ResetDailyLimits zeroes every account's daily counter. Run by the
// scheduler at midnight (or by the reset endpoint).
func (m *Manager) ResetDailyLimits(ctx context.Context) (int, error) {
	n, err := m.store.ResetDailyUploadCounts(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("🔄 Reset daily upload counts for %d accounts", n)
	return n, nil
}

// AddRoutingRule creates a declarative category->account routing rule.
func (m *Manager) AddRoutingRule(ctx context.Context, accountID string, req models.CreateRoutingRuleRequest) (*models.RoutingRule, error) {
	if _, err := m.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("routing rule target: %w", err)
	}

	rule := &models.RoutingRule{
		ID:            uuid.NewString()[:12],
		AccountID:     accountID,
		Category:      req.Category,
		MinConfidence: req.MinConfidence,
		Priority:      req.Priority,
	}
	if err := m.store.CreateRoutingRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}
