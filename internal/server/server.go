package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewGRPCServer builds a grpc.Server serving svc and the standard health
// service. The health status of ServiceName starts as SERVING.
func NewGRPCServer(svc BandwidthModelServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	Register(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// Client calls a BandwidthModel service over conn
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Evaluate requests the row for one transfer size. A negative allowance
// uses the server profile value.
func (c *Client) Evaluate(ctx context.Context, size, allowance int) (map[string]interface{}, error) {
	fields := map[string]interface{}{"size": size}
	if allowance >= 0 {
		fields["header_allowance"] = allowance
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, EvaluateMethod, req, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// Sweep requests the profile sweep sampled every sample rows. A negative
// sample uses the server profile value.
func (c *Client) Sweep(ctx context.Context, sample int) ([]map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if sample >= 0 {
		fields["sample"] = sample
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, SweepMethod, req, resp); err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	for _, v := range resp.GetFields()["rows"].GetListValue().GetValues() {
		rows = append(rows, v.GetStructValue().AsMap())
	}
	return rows, nil
}
