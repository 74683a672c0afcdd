package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig locates template artifacts in a Cloud Storage bucket.
type GCSConfig struct {
	Bucket string
	// Prefix is prepended to template ids to form object names.
	Prefix string
	// ProjectID is billed for requests when set.
	ProjectID       string
	CredentialsPath string
}

// GCSClient serves template artifacts from a Cloud Storage bucket.
type GCSClient struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func NewGCSClient(ctx context.Context, cfg GCSConfig) (*GCSClient, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSClient{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: cfg.Prefix,
	}, nil
}

func (g *GCSClient) Load(ctx context.Context, templateID string) ([]byte, error) {
	objectName := TemplateObjectName(g.prefix, templateID)

	reader, err := g.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to open template %s: %w", objectName, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to download template %s: %w", objectName, err)
	}
	return content, nil
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

// TemplateObjectName places a template id under the bucket prefix.
func TemplateObjectName(prefix, templateID string) string {
	if prefix == "" {
		return templateID
	}
	return path.Join(prefix, templateID)
}
