package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ObjectPutter is the part of the S3 client the outbox uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// OutboxConfig describes the spool bucket. Endpoint and static keys are optional
// (S3-compatible stores such as MinIO need them).
type OutboxConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// OutboxSender spools messages as JSON objects for an out-of-band relay.
type OutboxSender struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

// NewOutboxSender builds the S3 client from cfg.
func NewOutboxSender(ctx context.Context, cfg OutboxConfig) (*OutboxSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewOutboxSenderWithClient(client, cfg.Bucket), nil
}

func NewOutboxSenderWithClient(client ObjectPutter, bucket string) *OutboxSender {
	return &OutboxSender{client: client, bucket: bucket, now: time.Now}
}

func (o *OutboxSender) Name() string { return "outbox" }

func (o *OutboxSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(struct {
		Message
		QueuedAt time.Time `json:"queuedAt"`
	}{Message: msg, QueuedAt: o.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode outbox message: %w", err)
	}
	key := fmt.Sprintf("outbox/%s/%s.json", o.now().UTC().Format("2006-01-02"), uuid.NewString())
	_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put outbox object: %w", err)
	}
	return nil
}
