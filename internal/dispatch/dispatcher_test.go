package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/logger"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &ses.SendEmailOutput{}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sns.PublishOutput{}, nil
}

func TestEmailSender_Send(t *testing.T) {
	client := &fakeSES{}
	sender := NewEmailSenderWithClient(client, "noreply@example.com", logger.NopLogger())

	err := sender.Send(context.Background(), Message{
		Channel:   "email",
		Recipient: "a@b.com",
		Subject:   "hello",
		Body:      "hi there",
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "noreply@example.com", *input.Source)
	assert.Equal(t, []string{"a@b.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "hello", *input.Message.Subject.Data)
	assert.Equal(t, "hi there", *input.Message.Body.Text.Data)
}

func TestEmailSender_EmptyRecipient(t *testing.T) {
	sender := NewEmailSenderWithClient(&fakeSES{}, "noreply@example.com", logger.NopLogger())

	err := sender.Send(context.Background(), Message{Channel: "email"})
	assert.Error(t, err)
}

func TestSMSSender_Send(t *testing.T) {
	client := &fakeSNS{}
	sender := NewSMSSenderWithClient(client, "HERALD", logger.NopLogger())

	err := sender.Send(context.Background(), Message{
		Channel:   "sms",
		Recipient: "+15550001111",
		Body:      "hi there",
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "+15550001111", *input.PhoneNumber)
	assert.Equal(t, "hi there", *input.Message)

	attr, ok := input.MessageAttributes["AWS.SNS.SMS.SenderID"]
	require.True(t, ok)
	assert.Equal(t, "HERALD", *attr.StringValue)
}

func TestSMSSender_NoSenderID(t *testing.T) {
	client := &fakeSNS{}
	sender := NewSMSSenderWithClient(client, "", logger.NopLogger())

	err := sender.Send(context.Background(), Message{Channel: "sms", Recipient: "+15550001111"})
	require.NoError(t, err)
	assert.Empty(t, client.inputs[0].MessageAttributes)
}

func TestChannelDispatcher_RoutesByChannel(t *testing.T) {
	sesClient := &fakeSES{}
	snsClient := &fakeSNS{}
	dispatcher := NewChannelDispatcher(
		NewEmailSenderWithClient(sesClient, "noreply@example.com", logger.NopLogger()),
		NewSMSSenderWithClient(snsClient, "", logger.NopLogger()),
	)

	require.NoError(t, dispatcher.Dispatch(context.Background(), Message{
		Channel:   "email",
		Recipient: "a@b.com",
	}))
	require.NoError(t, dispatcher.Dispatch(context.Background(), Message{
		Channel:   "sms",
		Recipient: "+15550001111",
	}))

	assert.Len(t, sesClient.inputs, 1)
	assert.Len(t, snsClient.inputs, 1)
}

func TestChannelDispatcher_UnsupportedChannel(t *testing.T) {
	dispatcher := NewChannelDispatcher(nil, nil)

	err := dispatcher.Dispatch(context.Background(), Message{Channel: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestChannelDispatcher_UnconfiguredSender(t *testing.T) {
	dispatcher := NewChannelDispatcher(nil, nil)

	err := dispatcher.Dispatch(context.Background(), Message{Channel: "email", Recipient: "a@b.com"})
	assert.Error(t, err)
}

func TestChannelDispatcher_PropagatesSendErrors(t *testing.T) {
	sesClient := &fakeSES{err: fmt.Errorf("ses is down")}
	dispatcher := NewChannelDispatcher(
		NewEmailSenderWithClient(sesClient, "noreply@example.com", logger.NopLogger()),
		nil,
	)

	err := dispatcher.Dispatch(context.Background(), Message{Channel: "email", Recipient: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ses is down")
}
