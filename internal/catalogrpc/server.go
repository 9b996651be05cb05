package catalogrpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/olapcore/internal/ctxlog"
	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/olap"
)

// Backend is what the catalog service serves from. *olap.Catalog satisfies it.
type Backend interface {
	olap.SchemaReader
	Cube(name string) (*olap.Cube, bool)
	Member(cube *olap.Cube, uniqueName string) (*olap.Member, bool)
}

// Server exposes a Backend as the olapcore.catalog.v1.Catalog service.
type Server struct {
	backend Backend
	desc    *Descriptors
}

// lookupHandler is the handler type checked by grpc.Server.RegisterService.
type lookupHandler interface {
	lookup(ctx context.Context, in protoreflect.Message) (protoreflect.Message, error)
}

func NewServer(b Backend) (*Server, error) {
	d, err := Describe()
	if err != nil {
		return nil, err
	}
	return &Server{backend: b, desc: d}, nil
}

// Register adds the service to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*lookupHandler)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: methodLookup,
			Handler:    s.handleLookup,
		}},
		Metadata: FilePath,
	}, s)
}

func (s *Server) handleLookup(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(s.desc.Lookup.Input())
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return s.lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + methodLookup}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.lookup(ctx, req.(protoreflect.ProtoMessage).ProtoReflect())
	})
}

func (s *Server) lookup(ctx context.Context, in protoreflect.Message) (protoreflect.Message, error) {
	start := time.Now()
	req, err := s.desc.decodeRequest(in)
	found := 0
	defer func() {
		eventbus.Publish(ctx, events.GRPCServerFinish{
			Method:   methodLookup,
			Cube:     req.Cube,
			Names:    len(req.Names),
			Found:    found,
			Code:     status.Code(err),
			Duration: time.Since(start),
		})
	}()
	if err != nil {
		err = status.Error(codes.InvalidArgument, err.Error())
		return nil, err
	}

	cube, ok := s.backend.Cube(req.Cube)
	if !ok {
		err = status.Errorf(codes.NotFound, "cube %q not found", req.Cube)
		return nil, err
	}
	parent, ok := s.backend.Member(cube, req.Parent)
	if !ok {
		err = status.Errorf(codes.NotFound, "member %s not found in cube %q", req.Parent, cube.Name)
		return nil, err
	}

	got, lerr := s.backend.LookupChildrenByName(ctx, parent, req.Names, req.Match)
	if lerr != nil {
		err = toStatus(lerr)
		ctxlog.FromContext(ctx).Warn("catalog lookup failed", "cube", cube.Name, "parent", req.Parent, "error", lerr)
		return nil, err
	}
	matches := make([]wireMatch, 0, len(got))
	for i, n := range req.Names {
		m, ok := got[n]
		if !ok {
			continue
		}
		matches = append(matches, wireMatch{Index: i, Name: m.Name, Unique: m.UniqueName(), Ordinal: m.Ordinal})
	}
	found = len(matches)
	return s.desc.encodeResponse(matches), nil
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
