package external

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"mentorship/internal/types"
)

type mockSESAPI struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, params, optFns...)
}

func testSendInput() types.SendInput {
	return types.SendInput{
		To:          "applicant@example.com",
		From:        types.SenderIdentity{Name: "Elite Mentorship", Address: "team@mentorship.example"},
		Subject:     "Welcome to Elite Mentorship",
		BodyHTML:    "<p>Hi Asha</p>",
		BodyText:    "Hi Asha",
		ReferenceID: "sub_001",
	}
}

func TestSESSend_Success(t *testing.T) {
	var captured *sesv2.SendEmailInput
	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
		},
	}

	client := NewSESClientWithAPI(mock, SESClientConfig{ConfigSetName: "intake-events", Logger: discardLogger()})

	msgID, err := client.Send(context.Background(), testSendInput())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "ses-msg-1" {
		t.Errorf("msgID = %q", msgID)
	}

	if got := aws.ToString(captured.FromEmailAddress); got != `"Elite Mentorship" <team@mentorship.example>` {
		t.Errorf("from = %q", got)
	}
	if got := captured.Destination.ToAddresses; len(got) != 1 || got[0] != "applicant@example.com" {
		t.Errorf("destination = %v", got)
	}
	simple := captured.Content.Simple
	if aws.ToString(simple.Subject.Data) != "Welcome to Elite Mentorship" {
		t.Errorf("subject = %q", aws.ToString(simple.Subject.Data))
	}
	if aws.ToString(simple.Body.Html.Data) != "<p>Hi Asha</p>" || aws.ToString(simple.Body.Text.Data) != "Hi Asha" {
		t.Errorf("unexpected bodies: %+v", simple.Body)
	}
	if aws.ToString(simple.Subject.Charset) != "UTF-8" {
		t.Errorf("charset = %q", aws.ToString(simple.Subject.Charset))
	}
	if aws.ToString(captured.ConfigurationSetName) != "intake-events" {
		t.Errorf("config set = %q", aws.ToString(captured.ConfigurationSetName))
	}
	if len(captured.EmailTags) != 1 || aws.ToString(captured.EmailTags[0].Value) != "sub_001" {
		t.Errorf("tags = %+v", captured.EmailTags)
	}
}

func TestSESSend_OmitsOptionalFields(t *testing.T) {
	var captured *sesv2.SendEmailInput
	mock := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-2")}, nil
		},
	}
	client := NewSESClientWithAPI(mock, SESClientConfig{})

	input := testSendInput()
	input.From.Name = ""
	input.BodyText = ""
	input.ReferenceID = ""

	if _, err := client.Send(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(captured.FromEmailAddress); got != "<team@mentorship.example>" {
		t.Errorf("from = %q", got)
	}
	if captured.Content.Simple.Body.Text != nil {
		t.Error("expected no text part")
	}
	if captured.ConfigurationSetName != nil || captured.EmailTags != nil {
		t.Error("expected no configuration set and no tags")
	}
}

func TestSESSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"rejected", &sestypes.MessageRejected{Message: aws.String("Email address is not verified")}, types.ErrCodeEmailBlocked},
		{"domain not verified", &sestypes.MailFromDomainNotVerifiedException{Message: aws.String("nope")}, types.ErrCodeEmailBlocked},
		{"throttled", &sestypes.TooManyRequestsException{Message: aws.String("slow down")}, types.ErrCodeUpstreamRateLimited},
		{"limit exceeded", &sestypes.LimitExceededException{Message: aws.String("quota")}, types.ErrCodeUpstreamRateLimited},
		{"sending paused", &sestypes.SendingPausedException{Message: aws.String("paused")}, types.ErrCodeUpstreamUnavailable},
		{"wrapped rejection", fmt.Errorf("operation error: %w", &sestypes.MessageRejected{Message: aws.String("x")}), types.ErrCodeEmailBlocked},
		{"generic", errors.New("connection reset"), types.ErrCodeUpstreamEmailProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSESAPI{
				sendEmailFunc: func(context.Context, *sesv2.SendEmailInput, ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
					return nil, tt.err
				},
			}
			_, err := NewSESClientWithAPI(mock, SESClientConfig{}).Send(context.Background(), testSendInput())
			assertAppErrorCode(t, err, tt.want)
		})
	}
}
