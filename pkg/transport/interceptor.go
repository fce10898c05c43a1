package transport

import (
	"time"

	"google.golang.org/grpc"

	"github.com/dipeo/eventplane/pkg/log"
)

// loggingStreamInterceptor logs each stream RPC's method, outcome, and
// duration by wrapping the handler and logging around it.
func loggingStreamInterceptor() grpc.StreamServerInterceptor {
	logger := log.WithComponent("transport")
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		event := logger.Debug()
		if err != nil {
			event = logger.Warn()
		}
		event.
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			AnErr("error", err).
			Msg("stream rpc completed")
		return err
	}
}
