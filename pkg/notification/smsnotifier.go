package notification

import (
	"bytes"
	"fmt"
	"log/slog"
	"text/template"
)

// SMSNotifier renders SMS templates and hands the result to a gateway
// function. The default gateway only logs the message, which is what
// local development and tests use; production wiring supplies a real
// provider callback.
type SMSNotifier struct {
	From    string
	gateway func(to, from, body string) error
}

func NewSMSNotifier(from string) *SMSNotifier {
	return &SMSNotifier{
		From: from,
		gateway: func(to, from, body string) error {
			slog.Info("SMS dispatched", "to", to, "from", from)
			return nil
		},
	}
}

// WithGateway replaces the delivery callback.
func (s *SMSNotifier) WithGateway(gateway func(to, from, body string) error) *SMSNotifier {
	s.gateway = gateway
	return s
}

func (s *SMSNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("SMS notification requires 'To'")
	}

	body := notification.Body
	if noticeTemplate.Text != "" {
		tmpl, err := template.New("sms").Parse(noticeTemplate.Text)
		if err != nil {
			slog.Error("Failed to parse SMS template", "err", err, "noticeType", noticeType)
			return err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, notification.Data); err != nil {
			slog.Error("Failed to render SMS template", "err", err, "noticeType", noticeType)
			return err
		}
		body = buf.String()
	}
	if body == "" {
		return fmt.Errorf("SMS notification requires a body or template")
	}

	return s.gateway(notification.To, s.From, body)
}
