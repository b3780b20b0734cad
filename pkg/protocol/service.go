package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "cloud.CivicCloudService"

const (
	methodStoreProjectDocument = "/" + ServiceName + "/StoreProjectDocument"
	methodGetProjectDocument   = "/" + ServiceName + "/GetProjectDocument"
	methodGetAdminStats        = "/" + ServiceName + "/GetAdminStats"
	methodToggleNode           = "/" + ServiceName + "/ToggleNode"
	methodAddNode              = "/" + ServiceName + "/AddNode"
	methodRemoveNode           = "/" + ServiceName + "/RemoveNode"
	methodGetNodeFiles         = "/" + ServiceName + "/GetNodeFiles"
)

// CivicCloudServiceClient is the client API of the storage cluster.
type CivicCloudServiceClient interface {
	StoreProjectDocument(ctx context.Context, opts ...grpc.CallOption) (CivicCloudService_StoreProjectDocumentClient, error)
	GetProjectDocument(ctx context.Context, in *GetProjectDocumentRequest, opts ...grpc.CallOption) (*GetProjectDocumentResponse, error)
	GetAdminStats(ctx context.Context, in *AdminRequest, opts ...grpc.CallOption) (*AdminStatsResponse, error)
	ToggleNode(ctx context.Context, in *ToggleNodeRequest, opts ...grpc.CallOption) (*Response, error)
	AddNode(ctx context.Context, in *AdminRequest, opts ...grpc.CallOption) (*Response, error)
	RemoveNode(ctx context.Context, in *NodeRequest, opts ...grpc.CallOption) (*Response, error)
	GetNodeFiles(ctx context.Context, in *NodeRequest, opts ...grpc.CallOption) (*NodeFilesResponse, error)
}

type civicCloudServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCivicCloudServiceClient(cc grpc.ClientConnInterface) CivicCloudServiceClient {
	return &civicCloudServiceClient{cc}
}

func (c *civicCloudServiceClient) invoke(ctx context.Context, method string, in, out Message, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, method, in, out, append(CallOptions(), opts...)...)
}

func (c *civicCloudServiceClient) StoreProjectDocument(ctx context.Context, opts ...grpc.CallOption) (CivicCloudService_StoreProjectDocumentClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], methodStoreProjectDocument, append(CallOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	return &storeProjectDocumentClient{stream}, nil
}

func (c *civicCloudServiceClient) GetProjectDocument(ctx context.Context, in *GetProjectDocumentRequest, opts ...grpc.CallOption) (*GetProjectDocumentResponse, error) {
	out := new(GetProjectDocumentResponse)
	if err := c.invoke(ctx, methodGetProjectDocument, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *civicCloudServiceClient) GetAdminStats(ctx context.Context, in *AdminRequest, opts ...grpc.CallOption) (*AdminStatsResponse, error) {
	out := new(AdminStatsResponse)
	if err := c.invoke(ctx, methodGetAdminStats, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *civicCloudServiceClient) ToggleNode(ctx context.Context, in *ToggleNodeRequest, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	if err := c.invoke(ctx, methodToggleNode, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *civicCloudServiceClient) AddNode(ctx context.Context, in *AdminRequest, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	if err := c.invoke(ctx, methodAddNode, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *civicCloudServiceClient) RemoveNode(ctx context.Context, in *NodeRequest, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	if err := c.invoke(ctx, methodRemoveNode, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *civicCloudServiceClient) GetNodeFiles(ctx context.Context, in *NodeRequest, opts ...grpc.CallOption) (*NodeFilesResponse, error) {
	out := new(NodeFilesResponse)
	if err := c.invoke(ctx, methodGetNodeFiles, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// CivicCloudService_StoreProjectDocumentClient is the sending side of the
// chunked upload. CloseSend may be called before CloseAndRecv.
type CivicCloudService_StoreProjectDocumentClient interface {
	Send(*StoreProjectDocumentRequest) error
	CloseAndRecv() (*StoreProjectDocumentResponse, error)
	grpc.ClientStream
}

type storeProjectDocumentClient struct {
	grpc.ClientStream
}

func (x *storeProjectDocumentClient) Send(m *StoreProjectDocumentRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *storeProjectDocumentClient) CloseAndRecv() (*StoreProjectDocumentResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(StoreProjectDocumentResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CivicCloudServiceServer is the server API of the storage cluster.
type CivicCloudServiceServer interface {
	StoreProjectDocument(CivicCloudService_StoreProjectDocumentServer) error
	GetProjectDocument(context.Context, *GetProjectDocumentRequest) (*GetProjectDocumentResponse, error)
	GetAdminStats(context.Context, *AdminRequest) (*AdminStatsResponse, error)
	ToggleNode(context.Context, *ToggleNodeRequest) (*Response, error)
	AddNode(context.Context, *AdminRequest) (*Response, error)
	RemoveNode(context.Context, *NodeRequest) (*Response, error)
	GetNodeFiles(context.Context, *NodeRequest) (*NodeFilesResponse, error)
}

// UnimplementedCivicCloudServiceServer can be embedded to satisfy the
// interface with methods that return codes.Unimplemented.
type UnimplementedCivicCloudServiceServer struct{}

func (UnimplementedCivicCloudServiceServer) StoreProjectDocument(CivicCloudService_StoreProjectDocumentServer) error {
	return status.Errorf(codes.Unimplemented, "method StoreProjectDocument not implemented")
}
func (UnimplementedCivicCloudServiceServer) GetProjectDocument(context.Context, *GetProjectDocumentRequest) (*GetProjectDocumentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetProjectDocument not implemented")
}
func (UnimplementedCivicCloudServiceServer) GetAdminStats(context.Context, *AdminRequest) (*AdminStatsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAdminStats not implemented")
}
func (UnimplementedCivicCloudServiceServer) ToggleNode(context.Context, *ToggleNodeRequest) (*Response, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ToggleNode not implemented")
}
func (UnimplementedCivicCloudServiceServer) AddNode(context.Context, *AdminRequest) (*Response, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AddNode not implemented")
}
func (UnimplementedCivicCloudServiceServer) RemoveNode(context.Context, *NodeRequest) (*Response, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RemoveNode not implemented")
}
func (UnimplementedCivicCloudServiceServer) GetNodeFiles(context.Context, *NodeRequest) (*NodeFilesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetNodeFiles not implemented")
}

type CivicCloudService_StoreProjectDocumentServer interface {
	SendAndClose(*StoreProjectDocumentResponse) error
	Recv() (*StoreProjectDocumentRequest, error)
	grpc.ServerStream
}

type storeProjectDocumentServer struct {
	grpc.ServerStream
}

func (x *storeProjectDocumentServer) SendAndClose(m *StoreProjectDocumentResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *storeProjectDocumentServer) Recv() (*StoreProjectDocumentRequest, error) {
	m := new(StoreProjectDocumentRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterCivicCloudServiceServer registers srv on s. The server must be
// built with ServerOptions so requests decode into this package's types.
func RegisterCivicCloudServiceServer(s grpc.ServiceRegistrar, srv CivicCloudServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func storeProjectDocumentHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(CivicCloudServiceServer).StoreProjectDocument(&storeProjectDocumentServer{stream})
}

// unaryHandler adapts a typed unary method to grpc.MethodDesc's handler shape.
func unaryHandler[Req any, PReq interface {
	*Req
	Message
}, Resp any](method string, call func(CivicCloudServiceServer, context.Context, PReq) (Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CivicCloudServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CivicCloudServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CivicCloudServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetProjectDocument",
			Handler: unaryHandler(methodGetProjectDocument, func(s CivicCloudServiceServer, ctx context.Context, in *GetProjectDocumentRequest) (*GetProjectDocumentResponse, error) {
				return s.GetProjectDocument(ctx, in)
			}),
		},
		{
			MethodName: "GetAdminStats",
			Handler: unaryHandler(methodGetAdminStats, func(s CivicCloudServiceServer, ctx context.Context, in *AdminRequest) (*AdminStatsResponse, error) {
				return s.GetAdminStats(ctx, in)
			}),
		},
		{
			MethodName: "ToggleNode",
			Handler: unaryHandler(methodToggleNode, func(s CivicCloudServiceServer, ctx context.Context, in *ToggleNodeRequest) (*Response, error) {
				return s.ToggleNode(ctx, in)
			}),
		},
		{
			MethodName: "AddNode",
			Handler: unaryHandler(methodAddNode, func(s CivicCloudServiceServer, ctx context.Context, in *AdminRequest) (*Response, error) {
				return s.AddNode(ctx, in)
			}),
		},
		{
			MethodName: "RemoveNode",
			Handler: unaryHandler(methodRemoveNode, func(s CivicCloudServiceServer, ctx context.Context, in *NodeRequest) (*Response, error) {
				return s.RemoveNode(ctx, in)
			}),
		},
		{
			MethodName: "GetNodeFiles",
			Handler: unaryHandler(methodGetNodeFiles, func(s CivicCloudServiceServer, ctx context.Context, in *NodeRequest) (*NodeFilesResponse, error) {
				return s.GetNodeFiles(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StoreProjectDocument",
			Handler:       storeProjectDocumentHandler,
			ClientStreams: true,
		},
	},
	Metadata: "cloud.proto",
}
