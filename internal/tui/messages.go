package tui

import "github.com/loqalabs/whispnote/internal/app"

// ChangedMsg means the controller state changed and the view should refresh.
type ChangedMsg struct{}

// NotificationMsg carries a controller notification.
type NotificationMsg struct {
	Notification app.Notification
}

// ClearNotificationMsg expires the notification with the given sequence number.
type ClearNotificationMsg struct {
	Seq int
}

// ActionErrorMsg reports a failed user action.
type ActionErrorMsg struct {
	Err error
}

type subscriptionClosedMsg struct{}
