package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ignite/mailmerge/internal/config"
	"github.com/ignite/mailmerge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the shared contract every Backend must satisfy.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, b.Put(ctx, "doc", []byte(`{"v":1}`)))
	got, err := b.Get(ctx, "doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))

	require.NoError(t, b.Put(ctx, "doc", []byte(`{"v":2}`)))
	got, err = b.Get(ctx, "doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	exerciseBackend(t, NewFileBackend(dir))

	// Only the final document is left behind, no temp files.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestFileBackendSanitizesKey(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir)
	require.NoError(t, b.Put(context.Background(), "../escape", []byte(`{}`)))

	_, err := os.Stat(filepath.Join(dir, "escape.json"))
	assert.NoError(t, err)
}

func TestProviderStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewProviderStore(NewMemoryBackend())

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cfg := &domain.ProviderConfig{
		Provider:     domain.ProviderSMTP,
		DefaultEmail: "ops@example.com",
		Credentials: map[string]string{
			domain.KeySMTPHost:     "mail.example.com",
			domain.KeySMTPUsername: "sender@example.com",
			domain.KeySMTPPassword: "hunter2",
		},
	}
	require.NoError(t, store.Save(ctx, cfg))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	sender, err := loaded.SenderEmail()
	require.NoError(t, err)
	assert.Equal(t, "sender@example.com", sender)
}

func TestProviderStoreLegacyFile(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"provider": "gmail", "credentials": {"gmail_email": "a@gmail.com", "api_key": "app-pass"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "email_provider.json"), []byte(legacy), 0644))

	loaded, err := NewProviderStore(NewFileBackend(dir)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGmail, loaded.Provider)
	assert.Equal(t, "a@gmail.com", loaded.Credential(domain.KeyGmailEmail))
}

func TestProviderStoreEmptyCredentials(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Put(context.Background(), ProviderKey, []byte(`{"provider":"smtp"}`)))

	loaded, err := NewProviderStore(b).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, loaded.Credentials)
}

func TestCampaignStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCampaignStore(NewFileBackend(dir))

	c := &domain.Campaign{
		Subject: "Hello",
		Body:    "<p>Hi {Name}</p>",
		Recipients: []domain.Recipient{
			{"Name": "Ann", "Email": "ann@example.com"},
			{"Name": "Bob", "email": "bob@example.com"},
		},
	}
	require.NoError(t, store.Save(ctx, c))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)

	// Documents are stored as indented JSON.
	raw, err := os.ReadFile(filepath.Join(dir, "campaign.json"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "\n  \"subject\""))
}

func TestCampaignStoreCorruptDocument(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Put(context.Background(), CampaignKey, []byte(`{not json`)))

	_, err := NewCampaignStore(b).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "decoding campaign")
}

func TestOpenLocal(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Type: config.StorageLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &FileBackend{}, s.Backend)
	assert.Nil(t, s.DB)
	assert.Nil(t, s.Redis)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"unknown", config.StorageConfig{Type: "floppy"}, "unknown type"},
		{"postgres without url", config.StorageConfig{Type: config.StoragePostgres}, "database_url"},
		{"redis without url", config.StorageConfig{Type: config.StorageRedis}, "redis_url"},
		{"s3 without bucket", config.StorageConfig{Type: config.StorageS3}, "s3_bucket"},
		{"dynamodb without table", config.StorageConfig{Type: config.StorageDynamoDB}, "dynamodb_table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
