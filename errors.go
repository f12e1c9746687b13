package sjq

import "errors"

var (
	// Not found errors.
	ErrJobNotFound        = errors.New("sjq: job not found")
	ErrAttachmentNotFound = errors.New("sjq: attachment not found")
	ErrHandlerNotFound    = errors.New("sjq: handler not found")

	// Configuration errors.
	ErrUnknownTopic = errors.New("sjq: unknown topic")
	ErrNoConfig     = errors.New("sjq: configuration file not found")

	// Lock errors.
	ErrTopicLocked = errors.New("sjq: topic already locked")

	// Handler contract errors.
	ErrHandlerFailed = errors.New("sjq: handler exited with failure")
	ErrBadNextTopics = errors.New("sjq: malformed next_topics in handler output")
)
