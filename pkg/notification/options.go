package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithSMS adds an SMS notifier sending from the given number
func WithSMS(from string) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(SMSSystem, NewSMSNotifier(from))
		return nil
	}
}

// WithEmailVerificationTemplate registers the email verification template
func WithEmailVerificationTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailVerificationNotice, EmailSystem, NoticeTemplate{
			Subject: "Verify Your Email Address",
			Html:    loadTemplate("templates/email/email_verification.html"),
		})
	}
}

// WithTwofaCodeEmailTemplate registers the 2FA code email template
func WithTwofaCodeEmailTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeEmailNotice, EmailSystem, NoticeTemplate{
			Subject: "Your Verification Code",
			Html:    loadTemplate("templates/email/twofa_code.html"),
		})
	}
}

// WithTwofaCodeSmsTemplate registers the 2FA code SMS template
func WithTwofaCodeSmsTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeSmsNotice, SMSSystem, NoticeTemplate{
			Subject: "Your Verification Code",
			Text:    "Your verification code is: {{.Code}}",
		})
	}
}

// WithPasswordResetTemplate registers the password reset template
func WithPasswordResetTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(PasswordResetNotice, EmailSystem, NoticeTemplate{
			Subject: "Password Reset Request",
			Html:    loadTemplate("templates/email/password_reset.html"),
		})
	}
}

// WithPasswordChangedTemplate registers the password changed notice template
func WithPasswordChangedTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(PasswordChangedNotice, EmailSystem, NoticeTemplate{
			Subject: "Your Password Was Changed",
			Html:    loadTemplate("templates/email/password_changed.html"),
		})
	}
}

// WithWelcomeTemplate registers the welcome template
func WithWelcomeTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(WelcomeNotice, EmailSystem, NoticeTemplate{
			Subject: "Welcome",
			Html:    loadTemplate("templates/email/welcome.html"),
		})
	}
}

// WithDefaultTemplates registers all default notice templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithEmailVerificationTemplate(),
			WithTwofaCodeEmailTemplate(),
			WithTwofaCodeSmsTemplate(),
			WithPasswordResetTemplate(),
			WithPasswordChangedTemplate(),
			WithWelcomeTemplate(),
		}

		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager()

	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
