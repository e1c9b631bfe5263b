package notification

type MockNotifier struct {
	SentNotifications []NotificationData
	SentNoticeTypes   []NoticeType
	Err               error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentNoticeTypes = append(m.SentNoticeTypes, noticeType)
	return nil
}
