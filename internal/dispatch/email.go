package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"herald/internal/logger"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailSender struct {
	client sesAPI
	from   string
	logger logger.Logger
}

func NewEmailSender(ctx context.Context, region, from string, log logger.Logger) (*EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &EmailSender{
		client: ses.NewFromConfig(cfg),
		from:   from,
		logger: log,
	}, nil
}

func NewEmailSenderWithClient(client sesAPI, from string, log logger.Logger) *EmailSender {
	return &EmailSender{client: client, from: from, logger: log}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("email recipient is empty")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfowCtx(ctx, "Email sent",
		"from", s.from,
		"to", msg.Recipient,
		"subject", msg.Subject,
	)
	return nil
}
