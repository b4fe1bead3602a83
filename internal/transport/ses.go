package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESConfig holds the configuration for creating a SESProvider
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SESProvider submits prebuilt raw MIME messages via the AWS SES v2 API
type SESProvider struct {
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// NewSES creates a SESProvider with the given configuration
func NewSES(ctx context.Context, cfg SESConfig) (*SESProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESProvider{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewSESWithClient creates a SESProvider with a custom client, used for testing
func NewSESWithClient(client SendEmailAPI) *SESProvider {
	return &SESProvider{client: client}
}

// Send submits the raw MIME message. The builder already encoded headers and
// body parts, so SES receives the message bit-exact.
func (p *SESProvider) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	if len(msg.Raw) == 0 {
		return "", fmt.Errorf("ses provider requires a raw message")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.EnvelopeFrom),
		Destination: &types.Destination{
			ToAddresses: msg.EnvelopeTo,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: msg.Raw,
			},
		},
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("SES API request failed: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}

// Name returns the provider name
func (p *SESProvider) Name() string {
	return "ses"
}
