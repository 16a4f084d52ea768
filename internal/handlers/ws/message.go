package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
)

// Outbound frame types owned by the gateway. Domain events use the names in
// the service package.
const (
	TypeReady       = "ready"
	TypeError       = "error"
	TypeJoinedGroup = "joined-group"
	TypeLeftGroup   = "left-group"
)

// GroupAuthority answers room-join checks.
type GroupAuthority interface {
	CanReadGroup(ctx context.Context, userID, groupID uint) (bool, error)
}

// EventContext provides all dependencies needed for processing one inbound frame
type EventContext struct {
	Ctx       context.Context
	Client    *Client
	Registry  *Registry
	Authority GroupAuthority
	RequestID string
	Logger    *slog.Logger
}

// Reply queues a frame for the sending connection only.
func (c *EventContext) Reply(typ string, payload interface{}) error {
	frame, err := encodeFrame(typ, payload, c.RequestID)
	if err != nil {
		return err
	}
	c.Client.Enqueue(frame)
	return nil
}

// Message interface for all inbound WebSocket frame types
type Message interface {
	GetType() string
	Process(ctx *EventContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Code        errs.Code `json:"code"`
	Error       string    `json:"error"`
	RequestType string    `json:"request_type,omitempty"`
}

func ToJson(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func FromJson(jsonBytes []byte, msg Message) error {
	if len(jsonBytes) == 0 || string(jsonBytes) == "null" {
		return nil
	}
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %q", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

func encodeFrame(typ string, payload interface{}, requestID string) ([]byte, error) {
	raw, err := ToJson(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return json.Marshal(SerializedMessage{Type: typ, Payload: raw, RequestID: requestID})
}

// errorFrame builds an error frame from a domain error. Internal causes are
// not exposed.
func errorFrame(err error, requestType, requestID string) []byte {
	code := errs.CodeOf(err)
	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message
	} else {
		msg = "internal error"
	}
	frame, encErr := encodeFrame(TypeError, ErrorPayload{Code: code, Error: msg, RequestType: requestType}, requestID)
	if encErr != nil {
		return []byte(`{"type":"error","payload":{"code":"UNKNOWN","error":"internal error"}}`)
	}
	return frame
}

// SendError queues an error frame for the client
func SendError(c *Client, err error, requestType, requestID string) {
	c.Enqueue(errorFrame(err, requestType, requestID))
}

func eventOf(typ string, payload interface{}) service.Event {
	return service.Event{Type: typ, Payload: payload}
}
