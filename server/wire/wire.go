// Package wire defines the control API's gRPC surface: the service and
// method names, the message codec, and the mapping between engine
// error kinds and gRPC status.
//
// Every method takes and returns a google.protobuf.Struct. The struct
// carries the JSON form of the hostif request or record, so the domain
// types stay the single source of truth for field names.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/frobware/go-hostif"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hostif.v1.HostInterfaceService"

// Method names.
const (
	MethodCreateTrapGroup       = "CreateTrapGroup"
	MethodRemoveTrapGroup       = "RemoveTrapGroup"
	MethodGetTrapGroup          = "GetTrapGroup"
	MethodCreateTrap            = "CreateTrap"
	MethodRemoveTrap            = "RemoveTrap"
	MethodGetTrap               = "GetTrap"
	MethodCreateHostInterface   = "CreateHostInterface"
	MethodRemoveHostInterface   = "RemoveHostInterface"
	MethodGetHostInterface      = "GetHostInterface"
	MethodCreateRouterInterface = "CreateRouterInterface"
	MethodRemoveRouterInterface = "RemoveRouterInterface"
	MethodGetRouterInterface    = "GetRouterInterface"
	MethodCreateTableEntry      = "CreateTableEntry"
	MethodRemoveTableEntry      = "RemoveTableEntry"
	MethodGetTableEntry         = "GetTableEntry"
	MethodSet                   = "Set"
	MethodCreateExternal        = "CreateExternal"
	MethodRemoveExternal        = "RemoveExternal"
	MethodRemove                = "Remove"
	MethodGet                   = "Get"
	MethodList                  = "List"
	MethodResolve               = "Resolve"
	MethodDispatch              = "Dispatch"
	MethodStats                 = "Stats"
	MethodInspect               = "Inspect"
)

// FullMethod returns the path a client invokes for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// IDRequest names one object.
type IDRequest struct {
	ID hostif.ObjectID `json:"id"`
}

// SetAttribute is one textual attribute update.
type SetAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SetRequest applies attribute updates to one object.
type SetRequest struct {
	ID         hostif.ObjectID `json:"id"`
	Attributes []SetAttribute  `json:"attributes"`
}

// ExternalRequest registers an external object.
type ExternalRequest struct {
	Type  hostif.ObjectType `json:"type"`
	Label string            `json:"label,omitempty"`
}

// ListRequest lists objects of one type.
type ListRequest struct {
	Type hostif.ObjectType `json:"type"`
}

// ResolveRequest asks which table entry governs a trap on an
// attachment point.
type ResolveRequest struct {
	Attachment hostif.ObjectID `json:"attachment"`
	Trap       hostif.ObjectID `json:"trap"`
}

// DispatchRequest asks for the delivery decision of a punted packet.
type DispatchRequest struct {
	Attachment hostif.ObjectID `json:"attachment"`
	TrapType   hostif.TrapType `json:"trap_type"`
}

// TypedObject carries an object whose type is only known at run time.
type TypedObject struct {
	Type   hostif.ObjectType `json:"type"`
	Object json.RawMessage   `json:"object"`
}

// ListResponse carries the objects of one type.
type ListResponse struct {
	Type    hostif.ObjectType `json:"type"`
	Objects []json.RawMessage `json:"objects"`
}

// Empty is the response of methods that return nothing.
type Empty struct{}

// Encode converts v to a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// Decode fills v from a Struct built by Encode.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// EncodeObject wraps an object with its type.
func EncodeObject(obj hostif.Object) (TypedObject, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return TypedObject{}, fmt.Errorf("encode object: %w", err)
	}
	return TypedObject{Type: obj.ObjectID().Type(), Object: data}, nil
}

// DecodeObject unwraps an object encoded by EncodeObject.
func DecodeObject(t TypedObject) (hostif.Object, error) {
	return hostif.DecodeObject(t.Type, t.Object)
}

// kindCode pairs an error kind with its status code and the name
// carried in the status details.
type kindCode struct {
	kind error
	code codes.Code
	name string
}

// Kinds are tested in order; the first that matches wins.
var kindCodes = []kindCode{
	{hostif.ErrInvalidReference, codes.InvalidArgument, "invalid_reference"},
	{hostif.ErrStaleHandle, codes.NotFound, "stale_handle"},
	{hostif.ErrNotFound, codes.NotFound, "not_found"},
	{hostif.ErrInUse, codes.FailedPrecondition, "in_use"},
	{hostif.ErrDuplicateKey, codes.AlreadyExists, "duplicate_key"},
	{hostif.ErrImmutable, codes.FailedPrecondition, "immutable"},
	{hostif.ErrInvalidValue, codes.InvalidArgument, "invalid_value"},
	{hostif.ErrNoMatch, codes.NotFound, "no_match"},
}

const kindDetail = "kind"

// ToStatus converts an engine error into a gRPC status error. The
// error kind travels in the status details so the client can restore
// it.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, kc := range kindCodes {
		if !errors.Is(err, kc.kind) {
			continue
		}
		st := status.New(kc.code, err.Error())
		detail, _ := structpb.NewStruct(map[string]any{kindDetail: kc.name})
		if withDetail, derr := st.WithDetails(detail); derr == nil {
			st = withDetail
		}
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// RemoteError is an engine error reported by the server. It unwraps to
// the original error kind when the server sent one.
type RemoteError struct {
	Code    codes.Code
	Message string
	Kind    error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Kind }

// FromStatus converts a gRPC status error back into an error that
// matches the server-side kind with errors.Is. Errors without a status
// are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	re := &RemoteError{Code: st.Code(), Message: st.Message()}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		name := s.GetFields()[kindDetail].GetStringValue()
		for _, kc := range kindCodes {
			if kc.name == name {
				re.Kind = kc.kind
			}
		}
	}
	if re.Kind == nil && st.Code() == codes.Unavailable {
		return fmt.Errorf("hostifd unavailable: %w", err)
	}
	return re
}
