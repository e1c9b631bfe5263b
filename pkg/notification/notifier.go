package notification

// NotificationSystem represents a delivery channel (e.g., email, SMS).
type NotificationSystem string

// NoticeType identifies the kind of notice being sent (e.g., email
// verification, two-factor code).
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"

	EmailVerificationNotice NoticeType = "email_verification"
	TwofaCodeEmailNotice    NoticeType = "twofa_code_email"
	TwofaCodeSmsNotice      NoticeType = "twofa_code_sms"
	PasswordResetNotice     NoticeType = "password_reset"
	PasswordChangedNotice   NoticeType = "password_changed"
	WelcomeNotice           NoticeType = "welcome"
)

// NotificationData carries the recipient and template variables for a
// single notice.
type NotificationData struct {
	To      string            // Recipient identifier (email address or phone number)
	Subject string            // Optional subject override
	Body    string            // Pre-rendered content, used when no template applies
	Data    map[string]string // Template variables
}

// NoticeTemplate holds the renderable content registered for a notice
// type on a given system.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
