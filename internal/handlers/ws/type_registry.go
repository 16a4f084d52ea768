package ws

import (
	"reflect"
)

var typeRegistry = map[string]reflect.Type{}

func init() {
	RegisterType(&MessageAuth{})
	RegisterType(&MessageJoinGroup{})
	RegisterType(&MessageLeaveGroup{})
	RegisterType(&MessageTypingDirect{})
	RegisterType(&MessageTypingGroup{})
	RegisterType(&MessageStatusUpdate{})
	RegisterType(&MessagePing{})
}

func RegisterType(msg Message) {
	typeRegistry[msg.GetType()] = reflect.TypeOf(msg).Elem()
}
