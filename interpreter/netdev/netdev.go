// Package netdev materialises host interfaces as Linux network devices
// and generic netlink endpoints using vishvananda/netlink.
//
// A netdev host interface becomes a persistent TAP device named after
// the host interface, brought administratively up. A genetlink host
// interface is checked against the kernel's registered families and
// multicast groups; nothing is created. fd host interfaces have no OS
// object of their own.
//
// Handles returned to the manager encode what is needed to destroy the
// device later without consulting the manager's records:
//
//	netdev:<name>:<ifindex>
//	genetlink:<family>:<family-id>
package netdev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/interpreter"
	"github.com/frobware/go-hostif/netns"
)

// Handle kinds.
const (
	kindNetdev    = "netdev"
	kindGenetlink = "genetlink"
)

// Adapter implements interpreter.DeviceOperations over netlink.
type Adapter struct {
	logger *slog.Logger
	netns  string
}

// Option configures the adapter.
type Option func(*Adapter)

// WithLogger sets the logger for device operations.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithNetns materialises devices in the network namespace at path
// instead of the caller's.
func WithNetns(path string) Option {
	return func(a *Adapter) {
		a.netns = path
	}
}

// New creates netlink-backed device operations.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "netdev")
	return a
}

// MaterializeDevice creates or validates the OS endpoint for h.
func (a *Adapter) MaterializeDevice(ctx context.Context, h hostif.HostInterface) (string, error) {
	var handle string
	err := netns.Run(a.netns, func() error {
		var err error
		switch h.Type {
		case hostif.HostifTypeNetdev:
			handle, err = a.createTap(h.Name)
		case hostif.HostifTypeGenetlink:
			handle, err = a.lookupFamily(h.Name, h.McgrpName)
		case hostif.HostifTypeFD:
		default:
			err = fmt.Errorf("cannot materialise host interface type %s", h.Type)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if handle != "" {
		a.logger.InfoContext(ctx, "materialised device", "id", h.ID, "handle", handle, "netns", a.netns)
	}
	return handle, nil
}

func (a *Adapter) createTap(name string) (string, error) {
	tap := &netlink.Tuntap{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		Mode:      netlink.TUNTAP_MODE_TAP,
		Flags:     netlink.TUNTAP_NO_PI,
	}
	if err := netlink.LinkAdd(tap); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return "", fmt.Errorf("netdev %s already exists", name)
		}
		return "", fmt.Errorf("create tap %s: %w", name, err)
	}
	// The device is persistent; the queue descriptors opened by
	// LinkAdd are not needed to keep it.
	for _, f := range tap.Fds {
		f.Close()
	}

	link, err := netlink.LinkByName(name)
	if err != nil {
		return "", errors.Join(fmt.Errorf("find tap %s: %w", name, err), deleteByName(name))
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return "", errors.Join(fmt.Errorf("set %s up: %w", name, err), netlink.LinkDel(link))
	}
	return FormatHandle(kindNetdev, name, link.Attrs().Index), nil
}

func deleteByName(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil
	}
	return netlink.LinkDel(link)
}

func (a *Adapter) lookupFamily(family, group string) (string, error) {
	fam, err := netlink.GenlFamilyGet(family)
	if err != nil {
		return "", fmt.Errorf("generic netlink family %s: %w", family, err)
	}
	if group != "" {
		found := false
		for _, g := range fam.Groups {
			if g.Name == group {
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("generic netlink family %s has no multicast group %s", family, group)
		}
	}
	return FormatHandle(kindGenetlink, family, int(fam.ID)), nil
}

// DestroyDevice removes the OS endpoint named by handle. Removing a
// netdev that is already gone succeeds.
func (a *Adapter) DestroyDevice(ctx context.Context, handle string) error {
	kind, name, index, err := ParseHandle(handle)
	if err != nil {
		return err
	}
	if kind == kindGenetlink {
		return nil
	}
	err = netns.Run(a.netns, func() error {
		link, err := netlink.LinkByIndex(index)
		if err != nil {
			var notFound netlink.LinkNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, unix.ENODEV) {
				a.logger.WarnContext(ctx, "device already gone", "handle", handle)
				return nil
			}
			return fmt.Errorf("find %s: %w", handle, err)
		}
		if link.Attrs().Name != name {
			// The index was reused by an unrelated device.
			a.logger.WarnContext(ctx, "device index reused, not deleting", "handle", handle, "found", link.Attrs().Name)
			return nil
		}
		if err := netlink.LinkDel(link); err != nil {
			return fmt.Errorf("delete %s: %w", handle, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "destroyed device", "handle", handle)
	return nil
}

// DeviceExists reports whether the endpoint named by handle is still
// present. A netdev must exist at the recorded index with the recorded
// name; a genetlink family must still be registered with the recorded
// id.
func (a *Adapter) DeviceExists(ctx context.Context, handle string) (bool, error) {
	kind, name, index, err := ParseHandle(handle)
	if err != nil {
		return false, err
	}
	var exists bool
	err = netns.Run(a.netns, func() error {
		switch kind {
		case kindGenetlink:
			fam, err := netlink.GenlFamilyGet(name)
			if err != nil {
				if errors.Is(err, unix.ENOENT) {
					return nil
				}
				return fmt.Errorf("generic netlink family %s: %w", name, err)
			}
			exists = int(fam.ID) == index
		default:
			link, err := netlink.LinkByIndex(index)
			if err != nil {
				var notFound netlink.LinkNotFoundError
				if errors.As(err, &notFound) || errors.Is(err, unix.ENODEV) {
					return nil
				}
				return fmt.Errorf("find %s: %w", handle, err)
			}
			exists = link.Attrs().Name == name
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	a.logger.DebugContext(ctx, "probed device", "handle", handle, "exists", exists)
	return exists, nil
}

var _ interpreter.DeviceOperations = (*Adapter)(nil)

// FormatHandle builds a device handle.
func FormatHandle(kind, name string, index int) string {
	return kind + ":" + name + ":" + strconv.Itoa(index)
}

// ParseHandle splits a device handle built by FormatHandle.
func ParseHandle(handle string) (kind, name string, index int, err error) {
	parts := strings.Split(handle, ":")
	if len(parts) != 3 || parts[1] == "" {
		return "", "", 0, fmt.Errorf("malformed device handle %q", handle)
	}
	switch parts[0] {
	case kindNetdev, kindGenetlink:
	default:
		return "", "", 0, fmt.Errorf("unknown device handle kind in %q", handle)
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil || index <= 0 {
		return "", "", 0, fmt.Errorf("malformed device handle %q: bad index", handle)
	}
	return parts[0], parts[1], index, nil
}
