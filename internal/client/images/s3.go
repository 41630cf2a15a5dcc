package images

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// GetObjectAPI is the part of the S3 client the opener uses.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Opener reads s3://bucket/key handles, e.g. images captured on another
// device and synced to a shared bucket.
type S3Opener struct {
	api GetObjectAPI
}

func NewS3Opener(api GetObjectAPI) *S3Opener {
	return &S3Opener{api: api}
}

// S3Settings configures NewS3OpenerFromConfig.
type S3Settings struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3OpenerFromConfig builds an opener from the default AWS credential
// chain, or from static keys when both are set. A non-empty endpoint
// switches to path-style addressing, as needed by MinIO and other
// S3-compatible stores.
func NewS3OpenerFromConfig(ctx context.Context, st S3Settings) (*S3Opener, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if st.Region != "" {
		opts = append(opts, awsconfig.WithRegion(st.Region))
	}
	if st.AccessKey != "" && st.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(st.AccessKey, st.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if st.Endpoint != "" {
			o.BaseEndpoint = aws.String(st.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Opener(client), nil
}

func (o *S3Opener) Open(ctx context.Context, ref string) (*Image, error) {
	bucket, key, err := parseS3Ref(ref)
	if err != nil {
		return nil, err
	}

	out, err := o.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return &Image{Name: baseName(key), Content: out.Body}, nil
}

func parseS3Ref(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	return u.Host, key, nil
}
