package grpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcserver "github.com/atinyakov/shortlink/internal/app/server/grpc"
	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/mocks"
	"github.com/atinyakov/shortlink/internal/storage"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return st
}

func TestCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockURLService := mocks.NewMockURLServiceIface(ctrl)
	handler := &grpcserver.ShortenerServer{Service: mockURLService}

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	record := &storage.URLRecord{Short: "abc123", Original: "https://example.com", CreatedAt: created, IsActive: true}

	mockURLService.EXPECT().CreateURLRecord(gomock.Any(), "example.com", "", nil).Return(record, nil)
	mockURLService.EXPECT().ShortURL("abc123").Return("http://localhost/abc123")
	mockURLService.EXPECT().IsExpired(record).Return(false)

	resp, err := handler.Create(context.Background(), mustStruct(t, map[string]any{"original_url": "example.com"}))
	require.NoError(t, err)

	fields := resp.GetFields()
	assert.Equal(t, "abc123", fields["short_code"].GetStringValue())
	assert.Equal(t, "http://localhost/abc123", fields["short_url"].GetStringValue())
	assert.Equal(t, "2025-01-02T03:04:05Z", fields["created_at"].GetStringValue())
	assert.IsType(t, &structpb.Value_NullValue{}, fields["expires_at"].GetKind())
	assert.True(t, fields["is_active"].GetBoolValue())
}

func TestCreate_BadExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := &grpcserver.ShortenerServer{Service: mocks.NewMockURLServiceIface(ctrl)}

	_, err := handler.Create(context.Background(), mustStruct(t, map[string]any{
		"original_url": "https://example.com",
		"expires_at":   "tomorrow",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not found", storage.ErrNotFound, codes.NotFound},
		{"expired", service.ErrExpired, codes.FailedPrecondition},
		{"invalid code", service.ErrInvalidCode, codes.InvalidArgument},
		{"conflict", storage.ErrConflict, codes.AlreadyExists},
		{"exhausted", service.ErrExhausted, codes.Internal},
		{"other", errors.New("db down"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockURLService := mocks.NewMockURLServiceIface(ctrl)
			handler := &grpcserver.ShortenerServer{Service: mockURLService}

			mockURLService.EXPECT().ResolveURL(gomock.Any(), "abc123").Return(nil, tt.err)

			_, err := handler.Resolve(context.Background(), wrapperspb.String("abc123"))
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockURLService := mocks.NewMockURLServiceIface(ctrl)
	handler := &grpcserver.ShortenerServer{Service: mockURLService}

	mockURLService.EXPECT().DeleteURLRecord(gomock.Any(), "abc123").Return(nil)

	_, err := handler.Delete(context.Background(), wrapperspb.String("abc123"))
	assert.NoError(t, err)
}

func startBufconn(t *testing.T) *grpcserver.Client {
	t.Helper()

	mem, err := storage.CreateMemoryStorage()
	require.NoError(t, err)
	gen, err := service.NewCodeGenerator(service.CodeOptions{DefaultLength: 6, MinLength: 3, MaxLength: 20})
	require.NoError(t, err)
	svc := service.NewURL(mem, gen, zap.NewNop(), "http://sho.rt")

	lis := bufconn.Listen(1 << 20)
	srv := grpcserver.New(zap.NewNop(), svc, 0)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return grpcserver.NewClient(conn)
}

func TestServer_Lifecycle(t *testing.T) {
	client := startBufconn(t)
	ctx := context.Background()

	created, err := client.Create(ctx, mustStruct(t, map[string]any{
		"original_url": "https://example.com",
		"custom_code":  "grpc01",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://sho.rt/grpc01", created.GetFields()["short_url"].GetStringValue())

	_, err = client.Create(ctx, mustStruct(t, map[string]any{
		"original_url": "https://other.com",
		"custom_code":  "grpc01",
	}))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	original, err := client.Resolve(ctx, wrapperspb.String("grpc01"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", original.GetValue())

	info, err := client.Get(ctx, wrapperspb.String("grpc01"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), info.GetFields()["clicks"].GetNumberValue())

	updated, err := client.Update(ctx, mustStruct(t, map[string]any{
		"short_code":   "grpc01",
		"original_url": "example.org",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", updated.GetFields()["original_url"].GetStringValue())

	list, err := client.List(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Len(t, list.GetValues(), 1)

	_, err = client.Delete(ctx, wrapperspb.String("grpc01"))
	require.NoError(t, err)

	_, err = client.Get(ctx, wrapperspb.String("grpc01"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Delete(ctx, wrapperspb.String("grpc01"))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_Expired(t *testing.T) {
	client := startBufconn(t)
	ctx := context.Background()

	_, err := client.Create(ctx, mustStruct(t, map[string]any{
		"original_url": "https://example.com",
		"custom_code":  "gone01",
		"expires_at":   time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	}))
	require.NoError(t, err)

	_, err = client.Resolve(ctx, wrapperspb.String("gone01"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	info, err := client.Get(ctx, wrapperspb.String("gone01"))
	require.NoError(t, err)
	assert.True(t, info.GetFields()["expired"].GetBoolValue())
}
