package server

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/inspect"
	"github.com/frobware/go-hostif/server/wire"
)

// service is the handler type the descriptor is registered against.
type service interface {
	call(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error)
}

type handler func(s *Server, ctx context.Context, req *structpb.Struct) (any, error)

var handlers = map[string]handler{
	wire.MethodCreateTrapGroup: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var spec hostif.TrapGroupSpec
		if err := decode(req, &spec); err != nil {
			return nil, err
		}
		return s.mgr.CreateTrapGroup(ctx, spec)
	},
	wire.MethodRemoveTrapGroup: removeWith((*Server).removeTrapGroup),
	wire.MethodGetTrapGroup: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		return s.mgr.GetTrapGroup(ctx, id)
	},

	wire.MethodCreateTrap: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var spec hostif.TrapSpec
		if err := decode(req, &spec); err != nil {
			return nil, err
		}
		return s.mgr.CreateTrap(ctx, spec)
	},
	wire.MethodRemoveTrap: removeWith((*Server).removeTrap),
	wire.MethodGetTrap: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		return s.mgr.GetTrap(ctx, id)
	},

	wire.MethodCreateHostInterface: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var spec hostif.HostInterfaceSpec
		if err := decode(req, &spec); err != nil {
			return nil, err
		}
		return s.mgr.CreateHostInterface(ctx, spec)
	},
	wire.MethodRemoveHostInterface: removeWith((*Server).removeHostInterface),
	wire.MethodGetHostInterface: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		return s.mgr.GetHostInterface(ctx, id)
	},

	wire.MethodCreateRouterInterface: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var spec hostif.RouterInterfaceSpec
		if err := decode(req, &spec); err != nil {
			return nil, err
		}
		return s.mgr.CreateRouterInterface(ctx, spec)
	},
	wire.MethodRemoveRouterInterface: removeWith((*Server).removeRouterInterface),
	wire.MethodGetRouterInterface: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		return s.mgr.GetRouterInterface(ctx, id)
	},

	wire.MethodCreateTableEntry: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var spec hostif.TableEntrySpec
		if err := decode(req, &spec); err != nil {
			return nil, err
		}
		return s.mgr.CreateTableEntry(ctx, spec)
	},
	wire.MethodRemoveTableEntry: removeWith((*Server).removeTableEntry),
	wire.MethodGetTableEntry: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		return s.mgr.GetTableEntry(ctx, id)
	},

	wire.MethodSet: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var r wire.SetRequest
		if err := decode(req, &r); err != nil {
			return nil, err
		}
		attrs := make([]hostif.Attribute, 0, len(r.Attributes))
		for _, a := range r.Attributes {
			attr, err := hostif.ParseAttribute(r.ID.Type(), a.Name, a.Value)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, attr)
		}
		obj, err := s.mgr.Set(ctx, r.ID, attrs...)
		if err != nil {
			return nil, err
		}
		return wire.EncodeObject(obj)
	},
	wire.MethodCreateExternal: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var r wire.ExternalRequest
		if err := decode(req, &r); err != nil {
			return nil, err
		}
		return s.mgr.CreateExternal(ctx, r.Type, r.Label)
	},
	wire.MethodRemoveExternal: removeWith((*Server).removeExternal),
	wire.MethodRemove:         removeWith((*Server).remove),
	wire.MethodGet: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		obj, err := s.mgr.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return wire.EncodeObject(obj)
	},
	wire.MethodList: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var r wire.ListRequest
		if err := decode(req, &r); err != nil {
			return nil, err
		}
		objs, err := s.mgr.List(ctx, r.Type)
		if err != nil {
			return nil, err
		}
		resp := wire.ListResponse{Type: r.Type, Objects: make([]json.RawMessage, 0, len(objs))}
		for _, obj := range objs {
			data, err := json.Marshal(obj)
			if err != nil {
				return nil, err
			}
			resp.Objects = append(resp.Objects, data)
		}
		return resp, nil
	},

	wire.MethodResolve: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var r wire.ResolveRequest
		if err := decode(req, &r); err != nil {
			return nil, err
		}
		return s.mgr.Resolve(ctx, r.Attachment, r.Trap)
	},
	wire.MethodDispatch: func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		var r wire.DispatchRequest
		if err := decode(req, &r); err != nil {
			return nil, err
		}
		return s.mgr.Dispatch(ctx, r.Attachment, r.TrapType)
	},
	wire.MethodStats: func(s *Server, _ context.Context, _ *structpb.Struct) (any, error) {
		return s.mgr.ResolverStats(), nil
	},
	wire.MethodInspect: func(s *Server, ctx context.Context, _ *structpb.Struct) (any, error) {
		if s.store == nil {
			return nil, errInspectionDisabled
		}
		return inspect.Snapshot(ctx, s.store, s.prober)
	},
}

var errInspectionDisabled = errors.New("inspection is not enabled on this server")

func (s *Server) removeTrapGroup(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.RemoveTrapGroup(ctx, id)
}

func (s *Server) removeTrap(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.RemoveTrap(ctx, id)
}

func (s *Server) removeHostInterface(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.RemoveHostInterface(ctx, id)
}

func (s *Server) removeRouterInterface(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.RemoveRouterInterface(ctx, id)
}

func (s *Server) removeTableEntry(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.RemoveTableEntry(ctx, id)
}

func (s *Server) removeExternal(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.RemoveExternal(ctx, id)
}

func (s *Server) remove(ctx context.Context, id hostif.ObjectID) error {
	return s.mgr.Remove(ctx, id)
}

func removeWith(fn func(*Server, context.Context, hostif.ObjectID) error) handler {
	return func(s *Server, ctx context.Context, req *structpb.Struct) (any, error) {
		id, err := decodeID(req)
		if err != nil {
			return nil, err
		}
		return wire.Empty{}, fn(s, ctx, id)
	}
}

// decode reports malformed requests as invalid values.
func decode(req *structpb.Struct, v any) error {
	if err := wire.Decode(req, v); err != nil {
		return hostif.ValueError{Attr: "request", Reason: err.Error()}
	}
	return nil
}

func decodeID(req *structpb.Struct) (hostif.ObjectID, error) {
	var r wire.IDRequest
	if err := decode(req, &r); err != nil {
		return hostif.NullObjectID, err
	}
	return r.ID, nil
}

func (s *Server) call(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := handlers[method](s, ctx, req)
	if err != nil {
		return nil, err
	}
	return wire.Encode(resp)
}

func toStatus(err error) error { return wire.ToStatus(err) }

var serviceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*service)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
}

func methodDescs() []grpc.MethodDesc {
	descs := make([]grpc.MethodDesc, 0, len(handlers))
	for name := range handlers {
		descs = append(descs, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name),
		})
	}
	return descs
}

func unaryHandler(method string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(service)
		if interceptor == nil {
			resp, err := svc.call(ctx, method, in)
			return resp, toStatus(err)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: wire.FullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return svc.call(ctx, method, req.(*structpb.Struct))
		})
	}
}
