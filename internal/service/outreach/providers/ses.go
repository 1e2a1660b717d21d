package providers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	svc "github.com/devsync/outreach-backend/internal/service/outreach"
)

// SESProvider sends email through AWS SES.
type SESProvider struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

// SESOptions configure the provider. From should carry the display name,
// e.g. "DevSync Outreach <outreach@example.com>".
type SESOptions struct {
	Region   string
	From     string
	FromName string
}

func NewSESProvider(ctx context.Context, opts SESOptions, logger *zap.Logger) (*SESProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}

	from := opts.From
	if opts.FromName != "" {
		from = fmt.Sprintf("%s <%s>", opts.FromName, opts.From)
	}
	return &SESProvider{
		client: ses.NewFromConfig(awsCfg),
		from:   from,
		logger: logger,
	}, nil
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) Send(ctx context.Context, msg svc.EmailMessage) (*svc.SendResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(p.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(msg.BodyHTML),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(msg.BodyText),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send failed: %w", err)
	}

	p.logger.Info("email sent via SES",
		zap.String("to", msg.To),
		zap.String("message_id", aws.ToString(result.MessageId)))

	return &svc.SendResult{
		MessageID: aws.ToString(result.MessageId),
		Response:  map[string]interface{}{"provider": "ses"},
	}, nil
}
