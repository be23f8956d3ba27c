package models

// PublishStatus is the container lifecycle as reported by the Graph API,
// plus the two terminal states this process assigns itself.
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "PENDING"
	PublishStatusFinished  PublishStatus = "FINISHED"
	PublishStatusError     PublishStatus = "ERROR"
	PublishStatusTimeout   PublishStatus = "TIMEOUT"
	PublishStatusPublished PublishStatus = "PUBLISHED"
)

// PublishAttempt tracks one container create/poll/publish interaction.
// State is local to a single PublishAndWait call.
type PublishAttempt struct {
	ContainerID string
	Status      PublishStatus
	MediaID     string
}
