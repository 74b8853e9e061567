package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// S3Config selects the bucket and the two credential pairs. Reads use the
// read-only pair, writes and deletes the read-write pair.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string

	ReadAccessKey      string
	ReadSecretKey      string
	ReadWriteAccessKey string
	ReadWriteSecretKey string
}

type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores files as objects keyed folder/name.
type S3 struct {
	bucket string
	read   s3API
	write  s3API
}

// NewS3 builds the read and write clients.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is empty")
	}
	read, err := newS3Client(ctx, cfg, cfg.ReadAccessKey, cfg.ReadSecretKey)
	if err != nil {
		return nil, err
	}
	write, err := newS3Client(ctx, cfg, cfg.ReadWriteAccessKey, cfg.ReadWriteSecretKey)
	if err != nil {
		return nil, err
	}
	return &S3{bucket: cfg.Bucket, read: read, write: write}, nil
}

func newS3Client(ctx context.Context, cfg S3Config, key, secret string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3) Exists(ctx context.Context, folder, name string) (bool, error) {
	key, err := objectKey(folder, name)
	if err != nil {
		return false, err
	}
	_, err = s.read.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: head %s: %w", key, err)
	}
	return true, nil
}

// Save buffers r so the request body is seekable for payload signing.
func (s *S3) Save(ctx context.Context, folder, name string, r io.Reader) error {
	key, err := objectKey(folder, name)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("storage: read upload: %w", err)
	}
	_, err = s.write.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, folder, name string) ([]byte, error) {
	key, err := objectKey(folder, name)
	if err != nil {
		return nil, err
	}
	out, err := s.read.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if isNotFound(err) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Delete checks for the object first since DeleteObject succeeds on
// missing keys.
func (s *S3) Delete(ctx context.Context, folder, name string) (bool, error) {
	exists, err := s.Exists(ctx, folder, name)
	if err != nil || !exists {
		return false, err
	}
	key, _ := objectKey(folder, name)
	if _, err := s.write.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return false, fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return true, nil
}

// List pages through ListObjectsV2. Without recursion a "/" delimiter keeps
// nested objects out of the result.
func (s *S3) List(ctx context.Context, folder string, recursive bool) ([]domain.FileInfo, error) {
	prefix, err := objectKey(folder, "")
	if err != nil {
		return nil, err
	}
	prefix += "/"

	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix)}
	if !recursive {
		in.Delimiter = aws.String("/")
	}

	files := []domain.FileInfo{}
	pages := s3.NewListObjectsV2Paginator(s.read, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			fi := domain.FileInfo{Name: name, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				fi.Modified = obj.LastModified.UTC()
			}
			files = append(files, fi)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
