package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"rembes-go/internal/rembes"
)

// S3Options configures an S3Vault. Endpoint and UsePathStyle allow
// S3-compatible stores such as MinIO or R2.
type S3Options struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
}

// S3Vault stores objects in an S3 bucket, optionally under a key prefix.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault creates an S3 vault. Credentials come from opts when both
// keys are set, otherwise from the default AWS chain.
func NewS3Vault(ctx context.Context, name string, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Vault{
		name:     name,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) key(p string) string {
	return joinKey(v.prefix, p)
}

// List returns the objects directly under prefix.
func (v *S3Vault) List(ctx context.Context, prefix string) ([]rembes.ObjectInfo, error) {
	full := v.key(prefix)
	if prefix != "" && !strings.HasSuffix(full, "/") {
		full += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(v.bucket),
		Prefix:    aws.String(full),
		Delimiter: aws.String("/"),
	})

	infos := []rembes.ObjectInfo{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", v.bucket, full, err)
		}
		for _, obj := range page.Contents {
			name, ok := directChild(full, aws.ToString(obj.Key))
			if !ok {
				continue
			}
			infos = append(infos, rembes.ObjectInfo{
				Name:      name,
				CreatedAt: aws.ToTime(obj.LastModified),
				Size:      aws.ToInt64(obj.Size),
			})
		}
	}
	return infos, nil
}

// Put uploads an object, using multipart upload for large blobs.
func (v *S3Vault) Put(ctx context.Context, p string, r io.Reader, size int64) error {
	if err := checkPath(p); err != nil {
		return err
	}
	counter := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.bucket),
		Key:         aws.String(v.key(p)),
		Body:        counter,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", v.bucket, v.key(p), err)
	}
	if counter.n != size {
		// Do not leave a truncated blob behind under a valid record key.
		_, _ = v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(v.key(p)),
		})
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

// Get writes the object at p to w.
func (v *S3Vault) Get(ctx context.Context, p string, w io.Writer) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(p)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s: %w", p, rembes.ErrObjectNotFound)
		}
		return fmt.Errorf("getting s3://%s/%s: %w", v.bucket, v.key(p), err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading s3://%s/%s: %w", v.bucket, v.key(p), err)
	}
	return nil
}

// Delete removes the object at p. S3 deletes succeed for absent keys, so
// a HEAD request tells whether the object existed.
func (v *S3Vault) Delete(ctx context.Context, p string) (bool, error) {
	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(p)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("checking s3://%s/%s: %w", v.bucket, v.key(p), err)
	}

	if _, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(p)),
	}); err != nil {
		return false, fmt.Errorf("deleting s3://%s/%s: %w", v.bucket, v.key(p), err)
	}
	return true, nil
}

// ValidateSetup verifies that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// joinKey places p under prefix. An empty prefix leaves p unchanged.
func joinKey(prefix, p string) string {
	if prefix == "" {
		return p
	}
	joined := path.Join(prefix, p)
	if strings.HasSuffix(p, "/") {
		joined += "/"
	}
	return joined
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Vault implements rembes.Vault interface
var _ rembes.Vault = (*S3Vault)(nil)
