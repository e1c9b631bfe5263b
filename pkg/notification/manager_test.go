package notification

import (
	"testing"
)

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager()
	if nm == nil {
		t.Error("NewNotificationManager returned nil")
	}
	if nm.notifiers == nil {
		t.Error("notifiers map not initialized")
	}
	if nm.notificationRegistry == nil {
		t.Error("notificationRegistry map not initialized")
	}
}

func TestRegisterNotifier(t *testing.T) {
	nm := NewNotificationManager()
	mockNotifier := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mockNotifier)
	if n, exists := nm.notifiers[EmailSystem]; !exists {
		t.Error("Notifier not registered")
	} else if n != mockNotifier {
		t.Error("Wrong notifier registered")
	}

	// Overwriting an existing notifier replaces it
	newMockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, newMockNotifier)
	if n := nm.notifiers[EmailSystem]; n != newMockNotifier {
		t.Error("Notifier not overwritten")
	}
}

func TestRegisterNotification(t *testing.T) {
	nm := NewNotificationManager()

	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:        "Valid registration with both Text and Html",
			noticeType:  TwofaCodeEmailNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Code", Text: "Your code is {{.Code}}", Html: "<p>Your code is {{.Code}}</p>"},
			shouldError: false,
		},
		{
			name:        "Valid registration with Text only",
			noticeType:  TwofaCodeSmsNotice,
			system:      SMSSystem,
			template:    NoticeTemplate{Subject: "Code", Text: "Your code is {{.Code}}"},
			shouldError: false,
		},
		{
			name:        "Empty notice type",
			noticeType:  "",
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Code"},
			shouldError: true,
		},
		{
			name:        "Empty system",
			noticeType:  TwofaCodeEmailNotice,
			system:      "",
			template:    NoticeTemplate{Subject: "Code"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSend(t *testing.T) {
	nm := NewNotificationManager()
	mockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, mockNotifier)

	err := nm.RegisterNotification(EmailVerificationNotice, EmailSystem, NoticeTemplate{
		Subject: "Verify Your Email Address",
		Text:    "Your code is {{.Code}}",
	})
	if err != nil {
		t.Fatalf("RegisterNotification failed: %v", err)
	}

	data := NotificationData{
		To:   "user@example.com",
		Data: map[string]string{"Code": "123456"},
	}
	if err := nm.Send(EmailVerificationNotice, EmailSystem, data); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(mockNotifier.SentNotifications) != 1 {
		t.Fatalf("expected 1 sent notification, got %d", len(mockNotifier.SentNotifications))
	}
	if mockNotifier.SentNotifications[0].To != "user@example.com" {
		t.Errorf("wrong recipient: %s", mockNotifier.SentNotifications[0].To)
	}
	if mockNotifier.SentNoticeTypes[0] != EmailVerificationNotice {
		t.Errorf("wrong notice type: %s", mockNotifier.SentNoticeTypes[0])
	}

	// Unregistered notice type
	if err := nm.Send(PasswordResetNotice, EmailSystem, data); err == nil {
		t.Error("expected error for unregistered notice type")
	}

	// Registered type, unregistered system
	if err := nm.Send(EmailVerificationNotice, SMSSystem, data); err == nil {
		t.Error("expected error for unregistered system")
	}
}

func TestSMSNotifierRendersTemplate(t *testing.T) {
	var sentBody string
	notifier := NewSMSNotifier("+15005550006").WithGateway(func(to, from, body string) error {
		sentBody = body
		return nil
	})

	err := notifier.Send(TwofaCodeSmsNotice, NotificationData{
		To:   "+15005551234",
		Data: map[string]string{"Code": "654321"},
	}, NoticeTemplate{Text: "Your verification code is: {{.Code}}"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if sentBody != "Your verification code is: 654321" {
		t.Errorf("unexpected body: %q", sentBody)
	}
}

func TestSMSNotifierRequiresRecipient(t *testing.T) {
	notifier := NewSMSNotifier("+15005550006")
	err := notifier.Send(TwofaCodeSmsNotice, NotificationData{}, NoticeTemplate{Text: "hi"})
	if err == nil {
		t.Error("expected error for missing recipient")
	}
}

func TestDefaultTemplatesRegistered(t *testing.T) {
	nm, err := NewNotificationManagerWithOptions(WithDefaultTemplates())
	if err != nil {
		t.Fatalf("NewNotificationManagerWithOptions failed: %v", err)
	}

	for _, noticeType := range []NoticeType{
		EmailVerificationNotice,
		TwofaCodeEmailNotice,
		PasswordResetNotice,
		PasswordChangedNotice,
		WelcomeNotice,
	} {
		if _, ok := nm.notificationRegistry[noticeType][EmailSystem]; !ok {
			t.Errorf("missing email template for %s", noticeType)
		}
	}
	if _, ok := nm.notificationRegistry[TwofaCodeSmsNotice][SMSSystem]; !ok {
		t.Error("missing SMS template for twofa_code_sms")
	}
}
