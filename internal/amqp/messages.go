package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// InvalidationMessage tells every instance to drop cached pages under Path.
// Origin identifies the publishing instance so it can skip its own echo.
type InvalidationMessage struct {
	Path      string    `json:"path"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

var errEmptyPath = errors.New("invalidation message has empty path")

// NewInvalidationMessage stamps a message for path with the current time.
func NewInvalidationMessage(path, origin string) *InvalidationMessage {
	return &InvalidationMessage{
		Path:      path,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes and checks a message body.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Path == "" {
		return nil, errEmptyPath
	}
	return &msg, nil
}
