// Package server serves the bandwidth model over gRPC. Messages are
// google.protobuf.Struct values so clients need no generated stubs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"pcie-bw/pkg"
	"pcie-bw/pkg/sweep"
	"pcie-bw/pkg/types"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "pciebw.v1.BandwidthModel"

// Full method names
const (
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
	SweepMethod    = "/" + ServiceName + "/Sweep"
)

// BandwidthModelServer is implemented by Service
type BandwidthModelServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Observer is notified of every served request
type Observer interface {
	ObserveRequest(method, code string)
}

// Service evaluates requests against the currently loaded model
type Service struct {
	mu       sync.RWMutex
	model    sweep.Model
	cfg      sweep.Config
	sample   int
	observer Observer
}

// NewService creates a service for model. observer may be nil.
func NewService(model sweep.Model, cfg sweep.Config, sample int, observer Observer) *Service {
	return &Service{model: model, cfg: cfg, sample: sample, observer: observer}
}

// Update swaps the model used for later requests
func (s *Service) Update(model sweep.Model, cfg sweep.Config, sample int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model, s.cfg, s.sample = model, cfg, sample
	pkg.WithField("link", model.Link.String()).Info("model updated")
}

func (s *Service) snapshot() (sweep.Model, sweep.Config, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.cfg, s.sample
}

// Evaluate computes one row. Request fields: size (required) and
// header_allowance (optional, defaults to the profile value).
func (s *Service) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	model, cfg, _ := s.snapshot()

	size, err := intField(req, "size", -1)
	if err != nil {
		return nil, s.finish("Evaluate", err)
	}
	allowance, err := intField(req, "header_allowance", cfg.HeaderAllowance)
	if err != nil {
		return nil, s.finish("Evaluate", err)
	}
	if allowance < 0 {
		return nil, s.finish("Evaluate", types.NewConfigurationError("header_allowance", allowance, "must not be negative"))
	}

	row, err := model.Evaluate(size, allowance)
	if err != nil {
		return nil, s.finish("Evaluate", err)
	}
	out, err := toStruct(row)
	if err != nil {
		return nil, s.finish("Evaluate", err)
	}
	out.Fields["link"] = structpb.NewStringValue(model.Link.String())
	out.Fields["basis_gbps"] = structpb.NewNumberValue(model.Basis.Reference().Gbps())
	return out, s.finish("Evaluate", nil)
}

// Sweep runs the profile sweep and returns {"rows": [...]}. A sample
// field overrides the stride of the profile.
func (s *Service) Sweep(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	model, cfg, sample := s.snapshot()

	sample, err := intField(req, "sample", sample)
	if err != nil {
		return nil, s.finish("Sweep", err)
	}
	if sample < 0 {
		return nil, s.finish("Sweep", types.NewConfigurationError("sample", sample, "must not be negative"))
	}

	start := time.Now()
	rows, err := sweep.Run(ctx, model, cfg)
	if err != nil {
		return nil, s.finish("Sweep", err)
	}
	rows = sweep.Sample(rows, sample)

	list := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		v, err := toStruct(row)
		if err != nil {
			return nil, s.finish("Sweep", err)
		}
		list = append(list, v.AsMap())
	}
	out, err := structpb.NewStruct(map[string]interface{}{
		"link": model.Link.String(),
		"rows": list,
	})
	if err != nil {
		return nil, s.finish("Sweep", err)
	}
	pkg.Debug("served sweep of %d rows in %v", len(rows), time.Since(start))
	return out, s.finish("Sweep", nil)
}

// finish converts err to a gRPC status and records the outcome
func (s *Service) finish(method string, err error) error {
	st := toStatus(err)
	if s.observer != nil {
		s.observer.ObserveRequest(method, st.Code().String())
	}
	if err != nil {
		pkg.WithError(err).WithField("method", method).Warn("request failed")
		return st.Err()
	}
	return nil
}

// toStatus maps rejected input to InvalidArgument with a BadRequest detail
func toStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}

	var cerr *types.ConfigurationError
	var serr *types.InvalidSizeError
	var violation *errdetails.BadRequest_FieldViolation
	switch {
	case errors.As(err, &cerr):
		violation = &errdetails.BadRequest_FieldViolation{Field: cerr.Field, Description: cerr.Error()}
	case errors.As(err, &serr):
		violation = &errdetails.BadRequest_FieldViolation{Field: "size", Description: serr.Error()}
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}

	st := status.New(codes.InvalidArgument, err.Error())
	if detailed, derr := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{violation},
	}); derr == nil {
		return detailed
	}
	return st
}

// intField reads an integral number field, def is returned when it is
// absent. A negative def marks the field as required.
func intField(req *structpb.Struct, name string, def int) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		if def < 0 {
			return 0, types.NewConfigurationError(name, "", "field is required")
		}
		return def, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, types.NewConfigurationError(name, v.AsInterface(), "expected a number")
	}
	if math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, types.NewConfigurationError(name, n.NumberValue, "out of range")
	}
	if n.NumberValue != float64(int(n.NumberValue)) {
		return 0, types.NewConfigurationError(name, n.NumberValue, "expected an integer")
	}
	return int(n.NumberValue), nil
}

func toStruct(row sweep.Row) (*structpb.Struct, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return out, nil
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BandwidthModelServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BandwidthModelServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func sweepHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BandwidthModelServer).Sweep(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SweepMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BandwidthModelServer).Sweep(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the BandwidthModel service for grpc.Server
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BandwidthModelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Sweep", Handler: sweepHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pciebw/v1/bandwidth_model.proto",
}

// Register adds srv to s
func Register(s grpc.ServiceRegistrar, srv BandwidthModelServer) {
	s.RegisterService(&ServiceDesc, srv)
}
