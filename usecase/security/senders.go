package security

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Sender delivers a one-time code over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, destination, code string) error
}

// MailClient is the part of *sendgrid.Client the email sender uses.
type MailClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type EmailSender struct {
	client MailClient
	from   *sgmail.Email
}

func NewEmailSender(apiKey, appName, from string) *EmailSender {
	return NewEmailSenderWithClient(sendgrid.NewSendClient(apiKey), appName, from)
}

func NewEmailSenderWithClient(client MailClient, appName, from string) *EmailSender {
	return &EmailSender{client: client, from: sgmail.NewEmail(appName, from)}
}

func (s *EmailSender) Channel() string { return ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, destination, code string) error {
	text := fmt.Sprintf("Your verification code is %s. It expires in a few minutes.", code)
	msg := sgmail.NewV3MailInit(s.from, "Your verification code", sgmail.NewEmail("", destination), sgmail.NewContent("text/plain", text))

	res, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// SMSPublisher is the part of *sns.Client the SMS sender uses.
type SMSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SMSSender struct {
	client   SMSPublisher
	senderID string
}

func NewSMSSender(client SMSPublisher, senderID string) *SMSSender {
	return &SMSSender{client: client, senderID: senderID}
}

func (s *SMSSender) Channel() string { return ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, destination, code string) error {
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(destination),
		Message:           aws.String("Your verification code is " + code),
		MessageAttributes: attrs,
	})
	return err
}
