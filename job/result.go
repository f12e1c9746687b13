package job

import (
	"encoding/json"
	"fmt"
)

// Result is the contract a handler's output file must satisfy: a data value
// that becomes the payload of any chained jobs, and the topics those jobs
// are created for. No next topics means the chain ends here.
type Result struct {
	Data       json.RawMessage `json:"data"`
	NextTopics TopicList       `json:"next_topics"`
}

// ParseResult decodes a handler output document. A top-level document that
// is not a JSON object, or a next_topics value that is not null, a string,
// or a list of strings, is a handler-contract violation.
func ParseResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("job: parse handler output: %w", err)
	}
	return &r, nil
}

// TopicList accepts the three encodings handlers may use for next_topics —
// null, a single topic name, or a list of names — and normalizes them to a
// slice.
type TopicList []string

func (tl *TopicList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch topics := v.(type) {
	case nil:
		*tl = nil
	case string:
		*tl = TopicList{topics}
	case []any:
		out := make(TopicList, 0, len(topics))
		for _, t := range topics {
			s, ok := t.(string)
			if !ok {
				return fmt.Errorf("job: next_topics element %v is not a string", t)
			}
			out = append(out, s)
		}
		*tl = out
	default:
		return fmt.Errorf("job: next_topics must be null, a string, or a list of strings, got %T", v)
	}
	return nil
}
