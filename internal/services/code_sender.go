package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/mwhitfield/aegis/pkg/logger"
)

// CodeSender delivers a one-time passcode over one channel.
type CodeSender interface {
	Send(ctx context.Context, identifier, code string) error
}

// EmailCodeSender delivers passcodes over SES.
type EmailCodeSender struct {
	client *ses.Client
	from   string
	logger *slog.Logger
}

// NewEmailCodeSender builds the SES-backed sender using the ambient AWS
// credential chain.
func NewEmailCodeSender(ctx context.Context, region, fromAddress string, log *slog.Logger) (*EmailCodeSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailCodeSender{
		client: ses.NewFromConfig(cfg),
		from:   fromAddress,
		logger: log,
	}, nil
}

func (s *EmailCodeSender) Send(ctx context.Context, identifier, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in a few minutes. "+
		"If you did not request this, you can ignore this email.", code)

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{identifier},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("recipient", logger.SanitizedEmail(identifier)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info("verification email sent",
		slog.String("recipient", logger.SanitizedEmail(identifier)),
	)

	return nil
}

// LogSMSCodeSender stands in for an SMS gateway. It logs the dispatch
// without the code; wiring a real gateway only means swapping this
// implementation behind CodeSender.
type LogSMSCodeSender struct {
	logger *slog.Logger
}

// NewLogSMSCodeSender creates the logging SMS sender.
func NewLogSMSCodeSender(log *slog.Logger) *LogSMSCodeSender {
	return &LogSMSCodeSender{logger: log}
}

func (s *LogSMSCodeSender) Send(ctx context.Context, identifier, code string) error {
	s.logger.Info("sms verification code dispatched",
		slog.String("recipient", logger.SanitizedPhone(identifier)),
	)
	return nil
}
