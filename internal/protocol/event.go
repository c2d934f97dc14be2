package protocol

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrMalformedPayload = errors.New("malformed payload")

// Ack is a terminal's acknowledgment of a command.
type Ack struct {
	MessageID string
	Info      []byte // raw JSON of the info object
}

// Recognition is a face recognised by a terminal.
type Recognition struct {
	UserID    string
	ImageData string
}

// DecodeAck reads {messageId, info} from an Ack payload. messageId may be
// a JSON string or number.
func DecodeAck(payload []byte) (Ack, error) {
	if !gjson.ValidBytes(payload) {
		return Ack{}, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}

	id := gjson.GetBytes(payload, "messageId")
	if !id.Exists() || id.String() == "" {
		return Ack{}, fmt.Errorf("%w: missing messageId", ErrMalformedPayload)
	}

	return Ack{
		MessageID: id.String(),
		Info:      []byte(gjson.GetBytes(payload, "info").Raw),
	}, nil
}

// AckSucceeded decodes the outcome of a person command: only an explicit
// "fail" result is a failure.
func AckSucceeded(info []byte) bool {
	return gjson.GetBytes(info, "result").String() != "fail"
}

// DecodeRecognition reads {info:{customId, pic}} from a Rec payload.
func DecodeRecognition(payload []byte) (Recognition, error) {
	if !gjson.ValidBytes(payload) {
		return Recognition{}, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}

	info := gjson.GetBytes(payload, "info")
	if !info.IsObject() {
		return Recognition{}, fmt.Errorf("%w: missing info", ErrMalformedPayload)
	}

	return Recognition{
		UserID:    info.Get("customId").String(),
		ImageData: info.Get("pic").String(),
	}, nil
}
