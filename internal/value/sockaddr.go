package value

import (
	"net"
	"strconv"
)

// SockAddr is the projected form of spec.md §4.11: "push a table
// {family, ip, port} with family as a canonical string."
type SockAddr struct {
	Family string
	IP     string
	Port   int
}

// canonical family strings, spec.md §4.11.
const (
	FamilyInet   = "inet"
	FamilyInet6  = "inet6"
	FamilyUnix   = "unix"
	FamilyUnspec = "unspec"
)

// EncodeAddr projects a net.Addr into the canonical sockaddr table shape.
func EncodeAddr(addr net.Addr) SockAddr {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return SockAddr{Family: familyForIP(a.IP), IP: a.IP.String(), Port: a.Port}
	case *net.UDPAddr:
		return SockAddr{Family: familyForIP(a.IP), IP: a.IP.String(), Port: a.Port}
	case *net.UnixAddr:
		return SockAddr{Family: FamilyUnix, IP: a.Name}
	default:
		host, portStr, err := net.SplitHostPort(addr.String())
		if err != nil {
			return SockAddr{Family: FamilyUnspec}
		}
		port, _ := strconv.Atoi(portStr)
		ip := net.ParseIP(host)
		return SockAddr{Family: familyForIP(ip), IP: host, Port: port}
	}
}

func familyForIP(ip net.IP) string {
	if ip == nil {
		return FamilyUnspec
	}
	if ip.To4() != nil {
		return FamilyInet
	}
	return FamilyInet6
}
