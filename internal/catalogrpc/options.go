package catalogrpc

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures a Reader.
//
// Defaults:
//   - MaxConnsPerEndpoint: 2
//   - RPCTimeout:          3s, applied only when the caller's context has no deadline
//   - DialOptions:         insecure credentials
type Options struct {
	Provider EndpointProvider

	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration

	DialOptions []grpc.DialOption
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConnsPerEndpoint: 2,
		RPCTimeout:          3 * time.Second,
	}
}

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option   { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}

// WithTargets serves the catalog service from a fixed list of targets.
func WithTargets(targets ...string) Option {
	return WithProvider(NewStaticEndpoints(map[string][]string{ServiceName: targets}))
}
