package rpcserver_test

import (
	"context"
	"testing"

	"github.com/cuemby/fabric/pkg/rpcserver"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServeAndHealthCheck(t *testing.T) {
	srv, err := rpcserver.New("127.0.0.1:0", nil)
	require.NoError(t, err)

	srv.SetServing("", true)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	defer srv.Stop()

	addr := srv.Addr()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestSetServingNotServing(t *testing.T) {
	srv, err := rpcserver.New("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer srv.Stop()

	srv.SetServing("raft", false)
	srv.SetServing("raft", true)
}
