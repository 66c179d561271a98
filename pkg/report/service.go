package report

import (
	"context"

	"google.golang.org/grpc"
)

// Fully-qualified RPC names.
const (
	ServiceName          = "focusmonitor.report.v1.ReportService"
	SendReportFullMethod = "/" + ServiceName + "/SendReport"
)

// ReportServiceServer is implemented by the server-side receiver.
type ReportServiceServer interface {
	SendReport(ctx context.Context, r *Report) (*SendResponse, error)
}

// ReportServiceClient is the agent-side stub.
type ReportServiceClient interface {
	SendReport(ctx context.Context, r *Report, opts ...grpc.CallOption) (*SendResponse, error)
}

type reportServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewReportServiceClient returns a client that encodes every call with the
// JSON codec.
func NewReportServiceClient(cc grpc.ClientConnInterface) ReportServiceClient {
	return &reportServiceClient{cc: cc}
}

func (c *reportServiceClient) SendReport(ctx context.Context, r *Report, opts ...grpc.CallOption) (*SendResponse, error) {
	out := new(SendResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SendReportFullMethod, r, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterReportServiceServer registers srv on s.
func RegisterReportServiceServer(s grpc.ServiceRegistrar, srv ReportServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func sendReportHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Report)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportServiceServer).SendReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendReportFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReportServiceServer).SendReport(ctx, req.(*Report))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendReport",
			Handler:    sendReportHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "focusmonitor/report/v1",
}
