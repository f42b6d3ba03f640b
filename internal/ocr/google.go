package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GoogleCredentials selects how Google Cloud clients authenticate. Inline
// JSON wins over a file; with neither, Application Default Credentials are used.
type GoogleCredentials struct {
	JSON string
	File string
}

func (c GoogleCredentials) clientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	default:
		return nil
	}
}

func (c GoogleCredentials) configured() bool {
	return c.JSON != "" || c.File != ""
}

// noRetry disables the client library's own retries; Client owns the policy.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

// classifyGRPC maps a gRPC status onto the package sentinels.
func classifyGRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return withKind(ErrTimeout, err)
		}
		return err
	}
	if kind := grpcKind(st.Code()); kind != nil {
		return withKind(kind, err)
	}
	return err
}

func grpcKind(code codes.Code) error {
	switch code {
	case codes.OK, codes.Canceled:
		return nil
	case codes.DeadlineExceeded:
		return ErrTimeout
	case codes.Unavailable:
		return ErrUnavailable
	case codes.ResourceExhausted:
		return ErrRateLimited
	case codes.Internal, codes.Aborted, codes.Unknown:
		return ErrServerError
	default:
		return ErrClientError
	}
}

// statusError turns an in-band google.rpc.Status into a classified error.
func statusError(code int32, message string) error {
	c := codes.Code(code)
	err := fmt.Errorf("%s: %s", c, message)
	if kind := grpcKind(c); kind != nil {
		return withKind(kind, err)
	}
	return err
}
