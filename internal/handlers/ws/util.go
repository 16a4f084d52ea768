package ws

import (
	"encoding/json"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
)

// Deserialize decodes an inbound frame. Malformed frames yield an
// INVALID_ARGUMENT error; the wrapper is returned when it could be parsed so
// the caller can echo its request id.
func Deserialize(jsonBytes []byte) (Message, *SerializedMessage, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(jsonBytes, &wrapper); err != nil {
		return nil, nil, errs.Wrap(errs.CodeInvalidArgument, "malformed frame", err)
	}

	msg, err := DeserializeSerializedMessage(&wrapper)
	if err != nil {
		return nil, &wrapper, err
	}
	return msg, &wrapper, nil
}

func DeserializeSerializedMessage(wrapper *SerializedMessage) (Message, error) {
	if wrapper.Type == "" {
		return nil, errs.InvalidArgument("frame type is required")
	}
	msg, err := CreateMessage(wrapper.Type, typeRegistry)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "unknown frame type", err)
	}

	if err := FromJson(wrapper.Payload, msg); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "malformed payload", err)
	}

	return msg, nil
}
