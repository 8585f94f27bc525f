package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// Well-known nextflow report files surfaced by the logs listing.
var reportFileNames = map[string]bool{
	"timeline-report.html":  true,
	"execution-report.html": true,
	"dag-report.dot":        true,
}

type LogFile struct {
	Name         string
	URI          string
	SizeBytes    int64
	LastModified time.Time
	Report       bool
}

// ListLogFiles lists the objects under an analysis logs uri. Only the s3
// scheme is listable through the object store client; icav2 uris live on
// the platform side and are rejected here.
func ListLogFiles(ctx context.Context, client *minio.Client, logsURI string) ([]LogFile, error) {
	bucket, prefix, err := splitS3URI(logsURI)
	if err != nil {
		return nil, err
	}

	files := make([]LogFile, 0)
	for object := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", logsURI, object.Err)
		}
		name := path.Base(object.Key)
		files = append(files, LogFile{
			Name:         name,
			URI:          fmt.Sprintf("s3://%s/%s", bucket, object.Key),
			SizeBytes:    object.Size,
			LastModified: object.LastModified,
			Report:       reportFileNames[name],
		})
	}
	return files, nil
}

func splitS3URI(raw string) (bucket string, prefix string, err error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse uri %q: %w", raw, err)
	}
	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("uri %q is not listable: only the s3 scheme is supported", raw)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("uri %q has no bucket", raw)
	}
	return parsed.Host, strings.TrimPrefix(parsed.Path, "/"), nil
}
