// See codec.go for the json-over-grpc wire format and server.go for the
// Subscribe RPC that feeds a router.Router connection.
package transport
