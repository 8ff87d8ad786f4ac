package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadAWSConfig resolves credentials from static keys when configured,
// otherwise from the default AWS chain (env, shared config, instance role).
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	if strings.TrimSpace(cfg.AWSRegion) == "" {
		return aws.Config{}, fmt.Errorf("aws region is required when AWS auth is enabled")
	}

	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" || strings.TrimSpace(cfg.AWSSecretKey) != "" {
		if strings.TrimSpace(cfg.AWSAccessKeyID) == "" || strings.TrimSpace(cfg.AWSSecretKey) == "" {
			return aws.Config{}, fmt.Errorf("both AWS access key id and secret access key are required when using static AWS credentials")
		}
		return aws.Config{
			Region:      cfg.AWSRegion,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, cfg.AWSSessionToken),
		}, nil
	}

	loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS default config: %w", err)
	}
	if loaded.Credentials == nil {
		return aws.Config{}, fmt.Errorf("failed to resolve AWS credentials provider")
	}
	return loaded, nil
}

// sigV4Signer signs requests for Amazon OpenSearch Service / Elasticsearch domains.
type sigV4Signer struct {
	signer  *v4.Signer
	creds   aws.CredentialsProvider
	region  string
	service string
}

func newSigV4Signer(ctx context.Context, cfg Config) (*sigV4Signer, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &sigV4Signer{
		signer:  v4.NewSigner(),
		creds:   awsCfg.Credentials,
		region:  cfg.AWSRegion,
		service: cfg.AWSService,
	}, nil
}

func (s *sigV4Signer) sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	hash := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(hash[:])
	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, s.service, s.region, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to sign request with AWS SigV4: %w", err)
	}
	return nil
}

// signingRoundTripper signs every outgoing request before handing it to base.
type signingRoundTripper struct {
	base   http.RoundTripper
	signer *sigV4Signer
}

func (rt *signingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	payload, err := readRequestBody(cloned)
	if err != nil {
		return nil, err
	}
	if err := rt.signer.sign(cloned.Context(), cloned, payload); err != nil {
		return nil, err
	}
	return rt.base.RoundTrip(cloned)
}

func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
