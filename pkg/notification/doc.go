// Package notification provides a pluggable notice delivery system.
//
// A NotificationManager routes notices to registered Notifier
// implementations keyed by delivery system (email, SMS). Templates are
// registered per notice type and system, and rendered with Go
// text/html templates using the variables in NotificationData.Data.
//
// Typical setup:
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//	    notification.WithSMTP(smtpConfig),
//	    notification.WithSMS("+15005550006"),
//	    notification.WithDefaultTemplates(),
//	)
//	if err != nil {
//	    return err
//	}
//
//	err = nm.Send(notification.EmailVerificationNotice, notification.EmailSystem, notification.NotificationData{
//	    To:   "user@example.com",
//	    Data: map[string]string{"Code": "123456", "ExpiresIn": "10 minutes"},
//	})
//
// Custom notifiers implement the Notifier interface and are registered
// with RegisterNotifier. MockNotifier records sent notices for tests.
package notification
