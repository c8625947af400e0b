package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ignite/mailmerge/internal/domain"
)

// ProviderStore loads and saves the single ProviderConfig record.
type ProviderStore struct {
	backend Backend
}

// NewProviderStore creates a ProviderStore over b.
func NewProviderStore(b Backend) *ProviderStore {
	return &ProviderStore{backend: b}
}

// Load returns the stored provider settings or domain.ErrNotFound.
func (s *ProviderStore) Load(ctx context.Context) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	if err := getJSON(ctx, s.backend, ProviderKey, &cfg); err != nil {
		return nil, err
	}
	if cfg.Credentials == nil {
		cfg.Credentials = map[string]string{}
	}
	return &cfg, nil
}

// Save overwrites the provider settings wholesale.
func (s *ProviderStore) Save(ctx context.Context, cfg *domain.ProviderConfig) error {
	return putJSON(ctx, s.backend, ProviderKey, cfg)
}

// CampaignStore loads and saves the single Campaign record.
type CampaignStore struct {
	backend Backend
}

// NewCampaignStore creates a CampaignStore over b.
func NewCampaignStore(b Backend) *CampaignStore {
	return &CampaignStore{backend: b}
}

// Load returns the stored campaign or domain.ErrNotFound.
func (s *CampaignStore) Load(ctx context.Context) (*domain.Campaign, error) {
	var c domain.Campaign
	if err := getJSON(ctx, s.backend, CampaignKey, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save overwrites the campaign wholesale.
func (s *CampaignStore) Save(ctx context.Context, c *domain.Campaign) error {
	return putJSON(ctx, s.backend, CampaignKey, c)
}

func getJSON(ctx context.Context, b Backend, key string, target any) error {
	data, err := b.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func putJSON(ctx context.Context, b Backend, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.Put(ctx, key, data)
}
