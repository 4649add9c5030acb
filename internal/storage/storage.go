// Package storage persists per-recipient content manifests: the full
// PersonalizedContent bundle handed to the media generation pass.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/videocampaign/internal/config"
	"github.com/ignite/videocampaign/internal/domain"
)

// ArtifactStore writes content manifests and returns a reference to them.
type ArtifactStore interface {
	PutManifest(ctx context.Context, campaignID, recipientID string, content *domain.PersonalizedContent) (string, error)
}

// Manifest is the stored document.
type Manifest struct {
	CampaignID  string                      `json:"campaign_id"`
	RecipientID string                      `json:"recipient_id"`
	Content     *domain.PersonalizedContent `json:"content"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// New returns the store selected by cfg.Type, or nil for "none".
func New(ctx context.Context, cfg config.StorageConfig) (ArtifactStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		s, err := NewLocalStore(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		s, err := NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// manifestKey is the object key relative to any prefix.
func manifestKey(campaignID, recipientID string) string {
	return fmt.Sprintf("campaigns/%s/recipients/%s.json", safeSegment(campaignID), safeSegment(recipientID))
}

// safeSegment keeps ids from escaping their directory.
func safeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		return "_"
	}
	return s
}

func encodeManifest(campaignID, recipientID string, content *domain.PersonalizedContent) ([]byte, error) {
	data, err := json.MarshalIndent(Manifest{
		CampaignID:  campaignID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// LocalStore writes manifests under a base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// PutManifest writes the manifest and returns its file path.
func (s *LocalStore) PutManifest(ctx context.Context, campaignID, recipientID string, content *domain.PersonalizedContent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodeManifest(campaignID, recipientID, content)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.basePath, filepath.FromSlash(manifestKey(campaignID, recipientID)))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create manifest directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}
