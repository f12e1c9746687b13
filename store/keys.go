package store

// Key naming conventions for all sjq data. Every key is prefixed with
// "sjq:" to avoid collisions with other users of the same Redis database.

const keyPrefix = "sjq:"

// State names the four per-topic queues.
type State string

const (
	StateIncoming   State = "incoming"
	StateProcessing State = "processing"
	StateFailed     State = "failed"
	StateFatal      State = "fatal"
)

// JobKey returns the key for a job record: sjq:job:{id}
func JobKey(id string) string { return keyPrefix + "job:" + id }

// AttachmentKey returns the key for a job's attachment blob: sjq:attachment:{id}
func AttachmentKey(id string) string { return keyPrefix + "attachment:" + id }

// LockKey returns the key for a topic's exclusive lock: sjq:lock:{topic}
func LockKey(topic string) string { return keyPrefix + "lock:" + topic }

// QueueKey returns the list key for one (state, topic) queue: sjq:{state}:{topic}
func QueueKey(state State, topic string) string {
	return keyPrefix + string(state) + ":" + topic
}
