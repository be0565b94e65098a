// Package grpc exposes the shortener service over gRPC.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/intercepters"
	"github.com/atinyakov/shortlink/internal/storage"
)

// Server wraps the gRPC server and dependencies.
type Server struct {
	grpcServer *grpc.Server
	port       int
	logger     *zap.Logger
}

// New creates a new gRPC server instance.
func New(logger *zap.Logger, svc service.URLServiceIface, port int) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			intercepters.WithRecovery(logger),
			logging.UnaryServerInterceptor(intercepters.InterceptorLogger(logger)),
		),
	)

	RegisterURLServiceServer(s, &ShortenerServer{Service: svc})

	return &Server{
		grpcServer: s,
		port:       port,
		logger:     logger,
	}
}

// Start listens on the configured port and serves until stopped.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.logger.Error("gRPC server failed to listen", zap.Error(err))
		return err
	}

	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))

	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// GracefulStop shuts down the server gracefully.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// ShortenerServer implements URLServiceServer on top of the URL service.
type ShortenerServer struct {
	Service service.URLServiceIface
}

func (s *ShortenerServer) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	var expiresAt *time.Time
	if raw := fields["expires_at"].GetStringValue(); raw != "" {
		t, err := service.ParseExpiry(raw)
		if err != nil {
			return nil, toStatus(err)
		}
		expiresAt = &t
	}

	record, err := s.Service.CreateURLRecord(ctx,
		fields["original_url"].GetStringValue(),
		fields["custom_code"].GetStringValue(),
		expiresAt,
	)
	if err != nil {
		return nil, toStatus(err)
	}

	return s.toStruct(record)
}

func (s *ShortenerServer) Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	record, err := s.Service.GetURLByShort(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return s.toStruct(record)
}

// Resolve returns the original URL and counts a click, like an HTTP redirect does.
func (s *ShortenerServer) Resolve(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	record, err := s.Service.ResolveURL(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(record.Original), nil
}

func (s *ShortenerServer) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	record, err := s.Service.UpdateURLRecord(ctx,
		fields["short_code"].GetStringValue(),
		fields["original_url"].GetStringValue(),
	)
	if err != nil {
		return nil, toStatus(err)
	}

	return s.toStruct(record)
}

func (s *ShortenerServer) Delete(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.Service.DeleteURLRecord(ctx, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

func (s *ShortenerServer) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	records, err := s.Service.ListURLRecords(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	values := make([]*structpb.Value, 0, len(records))
	for i := range records {
		st, err := s.toStruct(&records[i])
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(st))
	}

	return &structpb.ListValue{Values: values}, nil
}

func (s *ShortenerServer) toStruct(r *storage.URLRecord) (*structpb.Struct, error) {
	var expiresAt any
	if r.ExpiresAt != nil {
		expiresAt = r.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	st, err := structpb.NewStruct(map[string]any{
		"original_url": r.Original,
		"short_code":   r.Short,
		"short_url":    s.Service.ShortURL(r.Short),
		"created_at":   r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":   expiresAt,
		"clicks":       r.Clicks,
		"is_active":    r.IsActive,
		"expired":      s.Service.IsExpired(r),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return st, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrInvalidCode), errors.Is(err, service.ErrInvalidExpiry):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrConflict):
		return status.Error(codes.AlreadyExists, "short code already exists")
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, "short URL not found")
	case errors.Is(err, service.ErrExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
