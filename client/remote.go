package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/inspect"
	"github.com/frobware/go-hostif/resolver"
	"github.com/frobware/go-hostif/server/wire"
)

// remoteClient implements Client over a gRPC connection.
type remoteClient struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

var _ Client = (*remoteClient)(nil)

func newRemote(address string, logger *slog.Logger) (*remoteClient, error) {
	target := parseAddress(address)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return &remoteClient{conn: conn, logger: logger}, nil
}

// parseAddress normalises an address for gRPC.
func parseAddress(address string) string {
	if strings.HasPrefix(address, "unix://") {
		return address
	}
	if strings.HasPrefix(address, "/") {
		return "unix://" + address
	}
	return address
}

func (c *remoteClient) Close() error {
	return c.conn.Close()
}

// invoke sends req to method and decodes the reply into resp.
func (c *remoteClient) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := wire.Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, wire.FullMethod(method), in, out); err != nil {
		c.logger.DebugContext(ctx, "remote call failed", "method", method, "error", err)
		return wire.FromStatus(err)
	}
	if resp == nil {
		return nil
	}
	return wire.Decode(out, resp)
}

func (c *remoteClient) CreateTrapGroup(ctx context.Context, spec hostif.TrapGroupSpec) (hostif.TrapGroup, error) {
	var g hostif.TrapGroup
	err := c.invoke(ctx, wire.MethodCreateTrapGroup, spec, &g)
	return g, err
}

func (c *remoteClient) RemoveTrapGroup(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemoveTrapGroup, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) GetTrapGroup(ctx context.Context, id hostif.ObjectID) (hostif.TrapGroup, error) {
	var g hostif.TrapGroup
	err := c.invoke(ctx, wire.MethodGetTrapGroup, wire.IDRequest{ID: id}, &g)
	return g, err
}

func (c *remoteClient) CreateTrap(ctx context.Context, spec hostif.TrapSpec) (hostif.Trap, error) {
	var t hostif.Trap
	err := c.invoke(ctx, wire.MethodCreateTrap, spec, &t)
	return t, err
}

func (c *remoteClient) RemoveTrap(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemoveTrap, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) GetTrap(ctx context.Context, id hostif.ObjectID) (hostif.Trap, error) {
	var t hostif.Trap
	err := c.invoke(ctx, wire.MethodGetTrap, wire.IDRequest{ID: id}, &t)
	return t, err
}

func (c *remoteClient) CreateHostInterface(ctx context.Context, spec hostif.HostInterfaceSpec) (hostif.HostInterface, error) {
	var h hostif.HostInterface
	err := c.invoke(ctx, wire.MethodCreateHostInterface, spec, &h)
	return h, err
}

func (c *remoteClient) RemoveHostInterface(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemoveHostInterface, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) GetHostInterface(ctx context.Context, id hostif.ObjectID) (hostif.HostInterface, error) {
	var h hostif.HostInterface
	err := c.invoke(ctx, wire.MethodGetHostInterface, wire.IDRequest{ID: id}, &h)
	return h, err
}

func (c *remoteClient) CreateRouterInterface(ctx context.Context, spec hostif.RouterInterfaceSpec) (hostif.RouterInterface, error) {
	var r hostif.RouterInterface
	err := c.invoke(ctx, wire.MethodCreateRouterInterface, spec, &r)
	return r, err
}

func (c *remoteClient) RemoveRouterInterface(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemoveRouterInterface, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) GetRouterInterface(ctx context.Context, id hostif.ObjectID) (hostif.RouterInterface, error) {
	var r hostif.RouterInterface
	err := c.invoke(ctx, wire.MethodGetRouterInterface, wire.IDRequest{ID: id}, &r)
	return r, err
}

func (c *remoteClient) CreateTableEntry(ctx context.Context, spec hostif.TableEntrySpec) (hostif.TableEntry, error) {
	var e hostif.TableEntry
	err := c.invoke(ctx, wire.MethodCreateTableEntry, spec, &e)
	return e, err
}

func (c *remoteClient) RemoveTableEntry(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemoveTableEntry, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) GetTableEntry(ctx context.Context, id hostif.ObjectID) (hostif.TableEntry, error) {
	var e hostif.TableEntry
	err := c.invoke(ctx, wire.MethodGetTableEntry, wire.IDRequest{ID: id}, &e)
	return e, err
}

func (c *remoteClient) Set(ctx context.Context, id hostif.ObjectID, attrs ...hostif.Attribute) (hostif.Object, error) {
	req := wire.SetRequest{ID: id, Attributes: make([]wire.SetAttribute, 0, len(attrs))}
	for _, a := range attrs {
		req.Attributes = append(req.Attributes, wire.SetAttribute{Name: a.Name(), Value: hostif.AttributeValue(a)})
	}
	var resp wire.TypedObject
	if err := c.invoke(ctx, wire.MethodSet, req, &resp); err != nil {
		return nil, err
	}
	return wire.DecodeObject(resp)
}

func (c *remoteClient) CreateExternal(ctx context.Context, t hostif.ObjectType, label string) (hostif.External, error) {
	var e hostif.External
	err := c.invoke(ctx, wire.MethodCreateExternal, wire.ExternalRequest{Type: t, Label: label}, &e)
	return e, err
}

func (c *remoteClient) RemoveExternal(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemoveExternal, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) Remove(ctx context.Context, id hostif.ObjectID) error {
	return c.invoke(ctx, wire.MethodRemove, wire.IDRequest{ID: id}, nil)
}

func (c *remoteClient) Get(ctx context.Context, id hostif.ObjectID) (hostif.Object, error) {
	var resp wire.TypedObject
	if err := c.invoke(ctx, wire.MethodGet, wire.IDRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return wire.DecodeObject(resp)
}

func (c *remoteClient) List(ctx context.Context, t hostif.ObjectType) ([]hostif.Object, error) {
	var resp wire.ListResponse
	if err := c.invoke(ctx, wire.MethodList, wire.ListRequest{Type: t}, &resp); err != nil {
		return nil, err
	}
	objs := make([]hostif.Object, 0, len(resp.Objects))
	for _, raw := range resp.Objects {
		obj, err := hostif.DecodeObject(resp.Type, raw)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (c *remoteClient) Resolve(ctx context.Context, attachment, trap hostif.ObjectID) (hostif.Resolution, error) {
	var r hostif.Resolution
	err := c.invoke(ctx, wire.MethodResolve, wire.ResolveRequest{Attachment: attachment, Trap: trap}, &r)
	return r, err
}

func (c *remoteClient) Dispatch(ctx context.Context, attachment hostif.ObjectID, trapType hostif.TrapType) (hostif.Decision, error) {
	var d hostif.Decision
	err := c.invoke(ctx, wire.MethodDispatch, wire.DispatchRequest{Attachment: attachment, TrapType: trapType}, &d)
	return d, err
}

func (c *remoteClient) Inspect(ctx context.Context) (*inspect.World, error) {
	var w inspect.World
	if err := c.invoke(ctx, wire.MethodInspect, wire.Empty{}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *remoteClient) Stats(ctx context.Context) (resolver.Stats, error) {
	var s resolver.Stats
	err := c.invoke(ctx, wire.MethodStats, wire.Empty{}, &s)
	return s, err
}

