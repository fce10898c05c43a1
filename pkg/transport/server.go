package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/router"
)

// Server exposes a router.EventRouter over gRPC: each Subscribe call
// registers a new connection whose ConnectionHandler streams messages
// back to that one caller, and subscribes it to the requested execution.
// Accepting the EventRouter interface rather than a concrete *router.Router
// lets the caller pass a *router.RedisRouter and still get its Redis-backed
// broadcast/subscribe behavior instead of the plain in-process one.
type Server struct {
	router router.EventRouter
	grpc   *grpc.Server
}

func NewServer(r router.EventRouter) *Server {
	grpcServer := grpc.NewServer(grpc.StreamInterceptor(loggingStreamInterceptor()))
	s := &Server{router: r, grpc: grpcServer}
	grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

// Subscribe implements EventStreamHandler. It registers a fresh
// connection id for the lifetime of the stream, subscribes it to the
// requested execution's replay buffer and future broadcasts, and blocks
// until the stream's context is canceled (client disconnect or server
// shutdown).
func (s *Server) Subscribe(ctx context.Context, req SubscribeRequest, send func(router.Message) error) error {
	if req.ExecutionID == "" {
		return fmt.Errorf("execution_id is required")
	}

	connID := uuid.NewString()
	logger := log.WithConnectionID(connID)

	s.router.RegisterConnection(connID, func(_ context.Context, msg router.Message) error {
		return send(msg)
	})
	defer s.router.UnregisterConnection(connID)

	if err := s.router.SubscribeConnectionToExecution(ctx, connID, req.ExecutionID); err != nil {
		logger.Error().Err(err).Str("execution_id", req.ExecutionID).Msg("failed to subscribe connection")
		return err
	}
	defer s.router.UnsubscribeConnectionFromExecution(connID, req.ExecutionID)

	logger.Debug().Str("execution_id", req.ExecutionID).Msg("event stream subscribed")
	<-ctx.Done()
	return nil
}

// Serve starts accepting connections on addr. It blocks until the
// listener errors or the gRPC server is stopped.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.grpc.Serve(lis)
}

func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
