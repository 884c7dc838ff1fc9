// Package rpcserver hosts the transport-facing pieces of a fabric node
// that are independent of any particular wire service definition: a
// TLS-optional gRPC listener (New/Serve/Stop, server TLS via crypto/tls)
// and the standard gRPC health service. Custom RPC method definitions
// are an external collaborator this module does not implement.
package rpcserver

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/cuemby/fabric/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TLSConfig optionally secures the listener. A nil *TLSConfig passed to
// New means plaintext, for local development and the in-memory-transport demos in
// cmd/fabric.
type TLSConfig struct {
	Cert tls.Certificate
}

// Server wraps a grpc.Server exposing only the standard health service.
// A real deployment would register its domain service (transactions,
// bridge, streaming) alongside Health on the same *grpc.Server.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
}

// New constructs a Server bound to addr. If tlsCfg is non-nil the
// listener negotiates TLS 1.3 using the supplied certificate.
func New(addr string, tlsCfg *TLSConfig) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	var opts []grpc.ServerOption
	if tlsCfg != nil {
		opts = append(opts, grpcCredentials(tlsCfg))
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		listener:   lis,
	}, nil
}

// SetServing updates the health status reported for service (empty
// string reports the overall server status), so a node can flip itself
// NOT_SERVING while it has no Raft leader and SERVING once it does.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Addr returns the listener's bound address, useful when addr was
// passed as "host:0" and the OS chose the port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks accepting connections until Stop is called.
func (s *Server) Serve() error {
	log.WithComponent("rpcserver").Info().Str("addr", s.listener.Addr().String()).Msg("gRPC server listening")
	return s.grpcServer.Serve(s.listener)
}

// Stop gracefully stops the gRPC server, waiting for in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func grpcCredentials(tlsCfg *TLSConfig) grpc.ServerOption {
	cfg := &tls.Config{
		Certificates: []tls.Certificate{tlsCfg.Cert},
		MinVersion:   tls.VersionTLS13,
	}
	return grpc.Creds(credentials.NewTLS(cfg))
}
