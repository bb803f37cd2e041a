package enum

type EntityType string

const (
	EMAIL        EntityType = "EMAIL"
	EMAIL_THREAD EntityType = "EMAIL_THREAD"
	MAILBOX      EntityType = "MAILBOX"
	MAILBOX_SYNC EntityType = "MAILBOX_SYNC"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
