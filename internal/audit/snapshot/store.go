// Package snapshot persists audit reports to an external blob store so they
// can be shared by URL later. Writes go under random public keys; the store's
// own lifecycle rules govern retention.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitescan/engine/pkg/types"
)

// ErrNotFound is returned when no snapshot exists at the requested location.
var ErrNotFound = errors.New("snapshot not found")

// Store is the snapshot persistence contract; BlobStore implements it.
type Store interface {
	Save(ctx context.Context, report *types.Report) (path string, absoluteURL string, err error)
	Load(ctx context.Context, pathOrURL string) (*types.Report, error)
}

const (
	defaultUploadBase = "https://blob.vercel-storage.com"
	blobPrefix        = "audits"
	requestTimeout    = 10 * time.Second
	maxSnapshotBody   = 5 << 20
)

// BlobStore persists reports to an HTTP blob service with bearer-token auth.
type BlobStore struct {
	uploadBase string
	publicBase string
	token      string
	client     *http.Client
	logger     *zap.Logger
}

// NewBlobStore creates a store against the given endpoints. publicBase is
// where saved blobs are later readable without auth.
func NewBlobStore(uploadBase, publicBase, token string, logger *zap.Logger) *BlobStore {
	if uploadBase == "" {
		uploadBase = defaultUploadBase
	}
	return &BlobStore{
		uploadBase: strings.TrimSuffix(uploadBase, "/"),
		publicBase: strings.TrimSuffix(publicBase, "/"),
		token:      token,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Save stores the report JSON under a random key and returns both the
// relative path and the absolute URL of the blob.
func (s *BlobStore) Save(ctx context.Context, report *types.Report) (string, string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", "", fmt.Errorf("marshal report: %w", err)
	}

	path := fmt.Sprintf("%s/%s.json", blobPrefix, uuid.New().String())

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uploadBase+"/"+path, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("upload snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("upload snapshot: blob store returned %d", resp.StatusCode)
	}

	absolute := s.publicBase + "/" + path
	var parsed uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&parsed); err == nil && parsed.URL != "" {
		absolute = parsed.URL
	}

	s.logger.Debug("Snapshot saved",
		zap.String("path", path),
		zap.String("url", absolute))

	return path, absolute, nil
}

// Load fetches a snapshot by relative path or absolute URL.
func (s *BlobStore) Load(ctx context.Context, pathOrURL string) (*types.Report, error) {
	target := pathOrURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = s.publicBase + "/" + strings.TrimPrefix(pathOrURL, "/")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch snapshot %s: status %d", target, resp.StatusCode)
	}

	var report types.Report
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBody)).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", target, err)
	}
	return &report, nil
}

// LoadLegacy resolves a bare snapshot id: it attempts "<id>.json" first and
// falls back to "<id>"; the first success wins.
func (s *BlobStore) LoadLegacy(ctx context.Context, id string) (*types.Report, error) {
	candidates := []string{
		fmt.Sprintf("%s/%s.json", blobPrefix, id),
		fmt.Sprintf("%s/%s", blobPrefix, id),
	}

	var lastErr error
	for _, candidate := range candidates {
		report, err := s.Load(ctx, candidate)
		if err == nil {
			return report, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return nil, lastErr
}

// ShareURL composes the public widget URL that references a stored snapshot.
func ShareURL(shareBase, path string) string {
	if shareBase == "" {
		return ""
	}
	return shareBase + "?blob=" + url.QueryEscape(path)
}
