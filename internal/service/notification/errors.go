package notification

import "errors"

var ErrUnknownTopic = errors.New("notification: topic has no notice")
