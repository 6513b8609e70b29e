package accounts

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/briahnloo/content-generator-stitching/internal/config"
	"github.com/briahnloo/content-generator-stitching/internal/models"
)

type fakeStore struct {
	accounts map[string]*models.Account
	rules    map[string]*models.RoutingRule
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]*models.Account{},
		rules:    map[string]*models.RoutingRule{},
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, account *models.Account) error {
	cp := *account
	f.accounts[account.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, account *models.Account) error {
	if _, ok := f.accounts[account.ID]; !ok {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	cp := *account
	f.accounts[account.ID] = &cp
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %s", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListAccounts(_ context.Context) ([]models.Account, error) {
	var out []models.Account
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) DeleteAccount(_ context.Context, id string) error {
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) ResetDailyUploadCounts(_ context.Context) (int, error) {
	n := 0
	for _, a := range f.accounts {
		if a.UploadsToday != 0 {
			a.UploadsToday = 0
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateRoutingRule(_ context.Context, rule *models.RoutingRule) error {
	cp := *rule
	f.rules[rule.ID] = &cp
	return nil
}

func (f *fakeStore) ListRoutingRules(_ context.Context) ([]models.RoutingRule, error) {
	var out []models.RoutingRule
	for _, r := range f.rules {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) DeleteRoutingRule(_ context.Context, id string) error {
	delete(f.rules, id)
	return nil
}

// 32 bytes of hex for secretbox.
const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestManager(t *testing.T) (*Manager, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	m, err := New(store, testKey)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, store
}

func TestNewRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not hex", "zz"},
		{"too short", "0001"},
		{"too long", testKey + "ff"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(newFakeStore(), tt.key); err == nil {
				t.Errorf("New(%q) expected error", tt.key)
			}
		})
	}
}

// TestNewAcceptsConfigDefaultKey pins the server boot contract: the key a
// bare-environment config.Load produces must always be one New accepts.
func TestNewAcceptsConfigDefaultKey(t *testing.T) {
	if _, err := New(newFakeStore(), config.DevCredentialsKey); err != nil {
		t.Fatalf("New() rejected the default development key: %v", err)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	account, err := m.CreateAccount(ctx, models.CreateAccountRequest{
		Platform: models.PlatformYouTube,
		Name:     "main-fails",
		Strategy: models.StrategyFails,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	creds := map[string]string{
		"client_id":     "abc",
		"client_secret": "s3cret",
		"refresh_token": "tok",
	}
	if err := m.SetCredentials(ctx, account.ID, creds); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	got, err := m.GetCredentials(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetCredentials() error = %v", err)
	}
	for k, v := range creds {
		if got[k] != v {
			t.Errorf("credentials[%q] = %q, want %q", k, got[k], v)
		}
	}
}

// The sealed blob must not contain the plaintext.
func TestCredentialsAreSealed(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	account, _ := m.CreateAccount(ctx, models.CreateAccountRequest{
		Platform: models.PlatformTikTok, Name: "tt-1",
	})
	if err := m.SetCredentials(ctx, account.ID, map[string]string{"session": "supersecret"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	blob := store.accounts[account.ID].CredentialsEncrypted
	if len(blob) == 0 {
		t.Fatal("no blob stored")
	}
	if strings.Contains(string(blob), "supersecret") {
		t.Error("plaintext credential leaked into the stored blob")
	}
}

func TestGetCredentialsWrongKey(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	account, _ := m.CreateAccount(ctx, models.CreateAccountRequest{
		Platform: models.PlatformYouTube, Name: "yt",
	})
	if err := m.SetCredentials(ctx, account.ID, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	otherKey := strings.Repeat("ff", 32)
	m2, err := New(store, otherKey)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := m2.GetCredentials(ctx, account.ID); err == nil {
		t.Error("expected open to fail under a different key")
	}
}

func TestGetCredentialsMissing(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	account, _ := m.CreateAccount(ctx, models.CreateAccountRequest{
		Platform: models.PlatformYouTube, Name: "bare",
	})
	if _, err := m.GetCredentials(ctx, account.ID); err == nil {
		t.Error("expected error for an account without credentials")
	}
}

func TestUpdateAccountPartial(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	account, _ := m.CreateAccount(ctx, models.CreateAccountRequest{
		Platform: models.PlatformYouTube, Name: "before",
		Strategy: models.StrategyFails, DailyLimit: 3,
	})

	name := "after"
	updated, err := m.UpdateAccount(ctx, account.ID, models.UpdateAccountRequest{Name: &name})
	if err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}
	if updated.Name != "after" {
		t.Errorf("name = %q, want %q", updated.Name, "after")
	}
	// Untouched fields survive.
	if updated.ContentStrategy != models.StrategyFails || updated.DailyUploadLimit != 3 {
		t.Errorf("untouched fields changed: strategy=%s limit=%d",
			updated.ContentStrategy, updated.DailyUploadLimit)
	}
}

func TestResetDailyLimits(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateAccount(ctx, models.CreateAccountRequest{Platform: models.PlatformYouTube, Name: "a"})
	b, _ := m.CreateAccount(ctx, models.CreateAccountRequest{Platform: models.PlatformTikTok, Name: "b"})
	store.accounts[a.ID].UploadsToday = 3
	store.accounts[b.ID].UploadsToday = 1

	n, err := m.ResetDailyLimits(ctx)
	if err != nil {
		t.Fatalf("ResetDailyLimits() error = %v", err)
	}
	if n != 2 {
		t.Errorf("reset %d accounts, want 2", n)
	}
	if store.accounts[a.ID].UploadsToday != 0 || store.accounts[b.ID].UploadsToday != 0 {
		t.Error("counters not zeroed")
	}
}

func TestAddRoutingRuleUnknownAccount(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.AddRoutingRule(context.Background(), "nope", models.CreateRoutingRuleRequest{
		Category: models.CategoryFails,
	})
	if err == nil {
		t.Error("expected error for unknown account")
	}
}
