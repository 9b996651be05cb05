package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// GRPCClientStart is emitted before a catalog gRPC client call.
type GRPCClientStart struct {
	Service string
	Method  string
	Target  string
}

// GRPCClientFinish is emitted after a catalog gRPC client call completes.
type GRPCClientFinish struct {
	Service  string
	Method   string
	Target   string
	Code     codes.Code
	Err      error
	Duration time.Duration
}

// GRPCServerFinish is emitted after the catalog service handled one call.
type GRPCServerFinish struct {
	Method   string
	Cube     string
	Names    int
	Found    int
	Code     codes.Code
	Duration time.Duration
}
