package devcluster

import (
	"context"
	"net"

	"civicrelay/pkg/protocol"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// InProcessEndpoint is the dial target to use with ServeInProcess's options.
const InProcessEndpoint = "bufnet"

const bufSize = 1024 * 1024

// ServeInProcess serves srv over an in-memory listener. The returned dial
// options route a gateway to it; stop shuts the server down.
func ServeInProcess(srv protocol.CivicCloudServiceServer) ([]grpc.DialOption, func()) {
	lis := bufconn.Listen(bufSize)
	server := grpc.NewServer(protocol.ServerOptions()...)
	protocol.RegisterCivicCloudServiceServer(server, srv)

	go server.Serve(lis)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
	stop := func() {
		server.Stop()
		lis.Close()
	}
	return []grpc.DialOption{grpc.WithContextDialer(dialer)}, stop
}
