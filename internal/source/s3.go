package source

import (
	"bytes"
	"context"
	"errors"
	"grayscale-detector/internal/pixel"
	neturl "net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/xerrors"
)

type s3Source struct {
	client *s3.Client
}

type S3Config struct {
	// EndpointURL overrides the S3 endpoint, e.g. for MinIO. Defaults to
	// $S3_ENDPOINT_URL.
	EndpointURL string
}

func NewS3Source(ctx context.Context, s S3Config) (Source, error) {
	if s.EndpointURL == "" {
		s.EndpointURL = os.Getenv("S3_ENDPOINT_URL")
	}

	c, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(c, func(o *s3.Options) {
		o.UsePathStyle = true
		if s.EndpointURL != "" {
			o.BaseEndpoint = aws.String(s.EndpointURL)
		}
	})

	return &s3Source{
		client: client,
	}, nil
}

// Fetch reads s3://bucket/key.
func (s *s3Source) Fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	u, err := neturl.Parse(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, &FetchError{URL: url, Err: xerrors.New("expected s3://bucket/key")}
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		fetchErr := &FetchError{URL: url, Err: err}
		var responseErr *awshttp.ResponseError
		if errors.As(err, &responseErr) {
			fetchErr.StatusCode = responseErr.HTTPStatusCode()
		}
		return nil, fetchErr
	}
	defer result.Body.Close()

	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(result.Body); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return Decode(url, buffer.Bytes())
}
