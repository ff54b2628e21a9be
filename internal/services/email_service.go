package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender delivers account notifications out-of-band.
type EmailSender interface {
	SendOTPEmail(ctx context.Context, email, otp string, expiresAt time.Time) error
	SendPasswordResetEmail(ctx context.Context, email, resetURL string) error
	SendLoginAlertEmail(ctx context.Context, email, ipAddress string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendOTPEmail delivers the 6-digit verification code
func (s *AWSSESEmailService) SendOTPEmail(ctx context.Context, email, otp string, expiresAt time.Time) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Verify Your Email</h1>
        <p>Your verification code is:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>This code expires at %s. If you did not create an account, you can ignore this email.</p>
    </div>
</body>
</html>
`, otp, expiresAt.UTC().Format(time.RFC1123))

	textBody := fmt.Sprintf(`Verify Your Email

Your verification code is: %s

This code expires at %s. If you did not create an account, you can ignore this email.
`, otp, expiresAt.UTC().Format(time.RFC1123))

	return s.send(ctx, email, "Verify your email", htmlBody, textBody)
}

// SendPasswordResetEmail delivers the reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, resetURL string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Reset Your Password</h1>
        <p>Click the link below to reset your password:</p>
        <p><a href="%s">%s</a></p>
        <p>This link expires in 10 minutes. If you did not request a reset, you can ignore this email.</p>
    </div>
</body>
</html>
`, resetURL, resetURL)

	textBody := fmt.Sprintf(`Reset Your Password

Click the following link to reset your password:

%s

This link expires in 10 minutes. If you did not request a reset, you can ignore this email.
`, resetURL)

	return s.send(ctx, email, "Password reset link", htmlBody, textBody)
}

// SendLoginAlertEmail notifies the account holder of a successful login
func (s *AWSSESEmailService) SendLoginAlertEmail(ctx context.Context, email, ipAddress string) error {
	detail := ""
	if ipAddress != "" {
		detail = fmt.Sprintf(" from IP address %s", ipAddress)
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>New Login</h1>
        <p>Your account was just signed in%s. If this was not you, reset your password immediately.</p>
    </div>
</body>
</html>
`, detail)

	textBody := fmt.Sprintf(`New Login

Your account was just signed in%s. If this was not you, reset your password immediately.
`, detail)

	return s.send(ctx, email, "Login notification", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
