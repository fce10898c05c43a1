package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/dipeo/eventplane/pkg/router"
)

// SubscribeRequest names the execution a caller wants to stream events
// for. It stands in for a compiled proto.SubscribeRequest message.
type SubscribeRequest struct {
	ExecutionID string `json:"execution_id"`
}

// EventEnvelope is one message sent down the stream: router.Message is
// itself a plain map, so it round-trips through the json codec unchanged.
type EventEnvelope struct {
	Payload router.Message `json:"payload"`
}

// eventStreamServer is implemented by anything that can push
// EventEnvelope values to one subscribed caller; grpc.ServerStream gives
// it Context()/SendMsg-style plumbing.
type eventStreamServer struct {
	grpc.ServerStream
}

func (s *eventStreamServer) Send(env *EventEnvelope) error {
	return s.SendMsg(env)
}

// EventStreamHandler is the application-level callback invoked per
// Subscribe call. Implementations register a router.ConnectionHandler
// under a connection id derived from the call and block until the
// stream's context is done.
type EventStreamHandler interface {
	Subscribe(ctx context.Context, req SubscribeRequest, send func(router.Message) error) error
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	var req SubscribeRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	h, ok := srv.(EventStreamHandler)
	if !ok {
		return fmt.Errorf("transport: server does not implement EventStreamHandler")
	}
	wrapped := &eventStreamServer{ServerStream: stream}
	return h.Subscribe(stream.Context(), req, func(msg router.Message) error {
		return wrapped.Send(&EventEnvelope{Payload: msg})
	})
}

// ServiceDesc is the hand-written stand-in for a protoc-generated
// grpc.ServiceDesc: one server-streaming method, Subscribe, which an
// EventStreamHandler implementation backs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "eventplane.EventStream",
	HandlerType: (*EventStreamHandler)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pkg/transport/service.go",
}
