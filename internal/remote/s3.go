// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tomtom215/strata/internal/config"
)

// S3Store implements Store against any S3-compatible endpoint. Tier
// directories map to key prefixes inside a single bucket; "s3:" is the
// remote prefix in configured paths.
type S3Store struct {
	api    *s3.Client
	bucket string
}

// NewS3Store builds an S3-backed store from configuration. Static
// credentials only: Strata is a cron job, not an instance-profile service.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("s3 access_key and secret_key are required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{api: api, bucket: cfg.Bucket}, nil
}

// Root returns "s3:/".
func (s *S3Store) Root() string { return "s3:/" }

// VersionCheck verifies the bucket is reachable.
func (s *S3Store) VersionCheck(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket})
	if err != nil {
		return fmt.Errorf("bucket %q not reachable: %w", s.bucket, err)
	}
	return nil
}

// ListRemotes reports the single "s3:" remote.
func (s *S3Store) ListRemotes(_ context.Context) ([]string, error) {
	return []string{"s3:"}, nil
}

// Mkdir is a no-op: S3 namespaces are prefix-based.
func (s *S3Store) Mkdir(_ context.Context, _ string) error { return nil }

// Copy routes between the filesystem and the bucket based on which sides
// carry the remote prefix.
func (s *S3Store) Copy(ctx context.Context, src, dst string) error {
	return s.transfer(ctx, src, dst, false)
}

// Move is Copy plus removal of the source.
func (s *S3Store) Move(ctx context.Context, src, dst string) error {
	return s.transfer(ctx, src, dst, true)
}

func (s *S3Store) transfer(ctx context.Context, src, dst string, removeSrc bool) error {
	switch {
	case !IsRemotePath(src) && IsRemotePath(dst):
		if err := s.upload(ctx, src, dst); err != nil {
			return err
		}
		if removeSrc {
			return os.Remove(src)
		}
		return nil

	case IsRemotePath(src) && !IsRemotePath(dst):
		if err := s.download(ctx, src, dst); err != nil {
			return err
		}
		if removeSrc {
			return s.DeleteFile(ctx, src)
		}
		return nil

	case IsRemotePath(src) && IsRemotePath(dst):
		_, srcKey := SplitRemotePath(src)
		_, dstDir := SplitRemotePath(dst)
		dstKey := strings.TrimRight(dstDir, "/") + "/" + BaseName(src)
		copySource := s.bucket + "/" + srcKey
		if _, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     &s.bucket,
			Key:        &dstKey,
			CopySource: &copySource,
		}); err != nil {
			return err
		}
		if removeSrc {
			return s.DeleteFile(ctx, src)
		}
		return nil

	default:
		return fmt.Errorf("local-to-local transfer is not a remote operation: %s -> %s", src, dst)
	}
}

// upload puts a local file under the destination prefix, keeping its base
// name.
func (s *S3Store) upload(ctx context.Context, src, dst string) error {
	f, err := os.Open(src) //nolint:gosec // G304: src comes from job configuration
	if err != nil {
		return fmt.Errorf("opening local source: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	_, dstDir := SplitRemotePath(dst)
	key := strings.TrimRight(dstDir, "/") + "/" + filepath.Base(src)

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          f,
		ContentLength: &size,
	})
	return err
}

// download fetches a remote object into the destination directory.
func (s *S3Store) download(ctx context.Context, src, dstDir string) error {
	_, key := SplitRemotePath(src)

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return err
	}
	defer out.Body.Close() //nolint:errcheck // Best effort close of response body

	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return err
	}

	dst := filepath.Join(dstDir, BaseName(src))
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) //nolint:gosec // G304: staging path
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return f.Close()
}

// List returns the sorted direct children under the dir prefix.
func (s *S3Store) List(ctx context.Context, dir string) ([]string, error) {
	_, prefix := SplitRemotePath(dir)
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	delimiter := "/"

	var names []string
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			Delimiter:         &delimiter,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return names, nil
}

// DeleteOlderThan removes objects under dir whose LastModified predates
// the age cutoff.
func (s *S3Store) DeleteOlderThan(ctx context.Context, dir string, age time.Duration) error {
	_, prefix := SplitRemotePath(dir)
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	cutoff := time.Now().Add(-age)

	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}
		for _, obj := range out.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: &s.bucket,
				Key:    obj.Key,
			}); err != nil {
				return err
			}
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return nil
}

// DeleteFile removes one object.
func (s *S3Store) DeleteFile(ctx context.Context, path string) error {
	_, key := SplitRemotePath(path)
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	return err
}

// Reconnect is a no-op: credentials are static.
func (s *S3Store) Reconnect(_ context.Context) error { return nil }
