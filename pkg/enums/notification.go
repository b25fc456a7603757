package enums

// NotificationType is the severity shown next to an inbox entry.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeError   NotificationType = "error"
)

func (n NotificationType) IsValid() bool {
	switch n {
	case NotificationTypeInfo, NotificationTypeWarning, NotificationTypeSuccess, NotificationTypeError:
		return true
	}
	return false
}
