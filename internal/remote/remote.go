// Package remote reads small text documents (schema and sink files) from the
// local filesystem or from object storage, dispatching on the path prefix:
//
//	s3://bucket/key      Amazon S3 (aws-sdk-go-v2 default credential chain)
//	gs://bucket/object   Google Cloud Storage (application default credentials)
//	anything else        local file
package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"synthstream/internal/logging"
)

// Kind identifies where a path lives.
type Kind string

const (
	KindLocal Kind = "local"
	KindS3    Kind = "s3"
	KindGCS   Kind = "gcs"
)

// Test hooks; tests replace these to avoid touching real object stores.
var (
	readS3  = readS3Object
	readGCS = readGCSObject
)

// KindOf classifies a path by its prefix. Unknown prefixes are local.
func KindOf(path string) Kind {
	switch {
	case strings.HasPrefix(path, "s3://"):
		return KindS3
	case strings.HasPrefix(path, "gs://"):
		return KindGCS
	default:
		return KindLocal
	}
}

// SplitBucketPath splits "scheme://bucket/key/parts" into bucket and key.
func SplitBucketPath(path string) (bucket, key string, err error) {
	i := strings.Index(path, "://")
	if i < 0 {
		return "", "", fmt.Errorf("remote: %q has no scheme", path)
	}
	rest := path[i+3:]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("remote: %q must look like scheme://bucket/key", path)
	}
	return bucket, key, nil
}

// ReadText returns the UTF-8 contents of the document at path.
func ReadText(ctx context.Context, path string) (string, error) {
	switch KindOf(path) {
	case KindS3:
		warnMissingEnv("to read from S3, AWS credentials must be set in the environment or default credentials will be used",
			"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY")
		bucket, key, err := SplitBucketPath(path)
		if err != nil {
			return "", err
		}
		b, err := readS3(ctx, bucket, key)
		if err != nil {
			return "", fmt.Errorf("remote: s3 get %s: %w", path, err)
		}
		return string(b), nil

	case KindGCS:
		warnMissingEnv("to read from GCS, Google Cloud credentials must be set in the environment or default credentials will be used",
			"GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT")
		bucket, object, err := SplitBucketPath(path)
		if err != nil {
			return "", err
		}
		b, err := readGCS(ctx, bucket, object)
		if err != nil {
			return "", fmt.Errorf("remote: gcs get %s: %w", path, err)
		}
		return string(b), nil

	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("remote: %w", err)
		}
		return string(b), nil
	}
}

// MissingEnv returns the names in vars that are not set in the environment.
func MissingEnv(vars ...string) []string {
	var missing []string
	for _, v := range vars {
		if _, ok := os.LookupEnv(v); !ok {
			missing = append(missing, v)
		}
	}
	return missing
}

func warnMissingEnv(reason string, vars ...string) {
	if missing := MissingEnv(vars...); len(missing) > 0 {
		logging.For("remote").Warn("environment variables are not defined",
			"missing", strings.Join(missing, ", "), "reason", reason)
	}
}

func readS3Object(ctx context.Context, bucket, key string) ([]byte, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s3.NewFromConfig(cfg).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func readGCSObject(ctx context.Context, bucket, object string) ([]byte, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
