package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"herald/internal/logger"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SMSSender struct {
	client   snsAPI
	senderID string
	logger   logger.Logger
}

func NewSMSSender(ctx context.Context, region, senderID string, log logger.Logger) (*SMSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SMSSender{
		client:   sns.NewFromConfig(cfg),
		senderID: senderID,
		logger:   log,
	}, nil
}

func NewSMSSenderWithClient(client snsAPI, senderID string, log logger.Logger) *SMSSender {
	return &SMSSender{client: client, senderID: senderID, logger: log}
}

func (s *SMSSender) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("sms recipient is empty")
	}

	input := &sns.PublishInput{
		Message:     aws.String(msg.Body),
		PhoneNumber: aws.String(msg.Recipient),
	}

	if s.senderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	s.logger.InfowCtx(ctx, "SMS sent",
		"to", msg.Recipient,
	)
	return nil
}
