package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"slideflow/internal/config"
	"slideflow/internal/ids"
)

type ObjectStore struct {
	client *minio.Client
	http   *http.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		http:   &http.Client{Timeout: 2 * time.Minute},
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.cfg.BucketSlides, s.cfg.BucketHooks} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket exists %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// Upload stores data under a generated object key and returns its public URL.
func (s *ObjectStore) Upload(ctx context.Context, bucket string, data []byte, ext string, folder string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty payload")
	}

	objectKey := buildObjectKey(folder, ext)
	options := minio.PutObjectOptions{
		ContentType: contentTypeForExt(ext),
	}

	if _, err := s.client.PutObject(ctx, bucket, objectKey, bytes.NewReader(data), int64(len(data)), options); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return s.PublicURL(bucket, objectKey), nil
}

// Download fetches an object's bytes. URLs under the store's own endpoint go
// through the minio client; anything else (provider delivery hosts) is a
// plain HTTP fetch.
func (s *ObjectStore) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if bucket, objectKey, ok := s.splitOwnURL(rawURL); ok {
		object, err := s.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("get object: %w", err)
		}
		defer object.Close()
		data, err := io.ReadAll(object)
		if err != nil {
			return nil, fmt.Errorf("read object: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func (s *ObjectStore) SlidesBucket() string {
	return s.cfg.BucketSlides
}

func (s *ObjectStore) HooksBucket() string {
	return s.cfg.BucketHooks
}

func (s *ObjectStore) PublicURL(bucket, objectKey string) string {
	base := strings.TrimSuffix(s.cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/%s/%s", base, bucket, objectKey)
}

func (s *ObjectStore) splitOwnURL(rawURL string) (bucket, objectKey string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	endpoint := s.cfg.Endpoint
	if strings.HasPrefix(endpoint, "http") {
		if eu, err := url.Parse(endpoint); err == nil {
			endpoint = eu.Host
		}
	}
	if u.Host != endpoint {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func buildObjectKey(folder, ext string) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	name := fmt.Sprintf("%s.%s", ids.New(), strings.TrimPrefix(ext, "."))
	if folder != "" {
		return path.Join(folder, datePrefix, name)
	}
	return path.Join(datePrefix, name)
}

func contentTypeForExt(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
