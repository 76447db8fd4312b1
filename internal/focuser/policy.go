package focuser

import (
	"context"
	"net/netip"
)

// Policy decides whether a caller may issue commands.
type Policy interface {
	Allowed(addr netip.Addr) bool
}

// AddressPolicy allows callers whose address falls inside one of a fixed
// set of prefixes.
type AddressPolicy struct {
	prefixes []netip.Prefix
}

// NewAddressPolicy creates a policy from the parsed control_machines list.
func NewAddressPolicy(prefixes []netip.Prefix) *AddressPolicy {
	return &AddressPolicy{prefixes: prefixes}
}

// Allowed reports whether addr is a control machine. IPv4-mapped IPv6
// addresses are matched as IPv4.
func (p *AddressPolicy) Allowed(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

type callerKey struct{}

// WithCaller returns a context carrying the address of the command caller.
func WithCaller(ctx context.Context, addr netip.Addr) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// CallerFromContext returns the caller address stored by WithCaller.
func CallerFromContext(ctx context.Context) (netip.Addr, bool) {
	addr, ok := ctx.Value(callerKey{}).(netip.Addr)
	return addr, ok && addr.IsValid()
}
