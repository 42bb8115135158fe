// Package upnp holds the core data model shared by device discovery,
// service clients, and the device/server aggregates: Device, Service,
// ServiceKind, and the wire-level ProtocolInfo/Item types.
package upnp

import (
	"fmt"
	"strings"
	"time"
)

// ServiceKind enumerates the UPnP/AV service types this control point
// understands.
type ServiceKind int

const (
	ContentDirectory ServiceKind = iota
	ConnectionManager
	AVTransport
	RenderingControl
)

func (k ServiceKind) String() string {
	switch k {
	case ContentDirectory:
		return "ContentDirectory"
	case ConnectionManager:
		return "ConnectionManager"
	case AVTransport:
		return "AVTransport"
	case RenderingControl:
		return "RenderingControl"
	default:
		return fmt.Sprintf("ServiceKind(%d)", int(k))
	}
}

// urnName is the <Kind> segment of urn:schemas-upnp-org:service:<Kind>:<v>,
// shared by every version of a given service type.
func (k ServiceKind) urnName() string {
	switch k {
	case ContentDirectory:
		return "ContentDirectory"
	case ConnectionManager:
		return "ConnectionManager"
	case AVTransport:
		return "AVTransport"
	case RenderingControl:
		return "RenderingControl"
	default:
		return ""
	}
}

// ParseServiceType extracts the ServiceKind and version from a device
// description's serviceType URN, e.g.
// "urn:schemas-upnp-org:service:AVTransport:1".
func ParseServiceType(serviceType string) (kind ServiceKind, version int, ok bool) {
	parts := strings.Split(serviceType, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	name := parts[len(parts)-2]
	version = 1
	fmt.Sscanf(parts[len(parts)-1], "%d", &version)

	for _, k := range []ServiceKind{ContentDirectory, ConnectionManager, AVTransport, RenderingControl} {
		if k.urnName() == name {
			return k, version, true
		}
	}
	return 0, 0, false
}

// ServiceType formats the serviceType URN for kind at version.
func ServiceType(kind ServiceKind, version int) string {
	return fmt.Sprintf("urn:schemas-upnp-org:service:%s:%d", kind.urnName(), version)
}

// Service is one immutable, already-URL-resolved service entry of a Device
//.
type Service struct {
	Kind        ServiceKind
	Version     int
	ServiceID   string
	ControlURL  string
	EventSubURL string
	SCPDURL     string
}

// Device is a discovered UPnP root device: identity is the UDN. Mutated
// only by the device scanner that owns it.
type Device struct {
	UDN             string
	DeviceType      string
	FriendlyName    string
	BaseURL         string
	PresentationURL string
	ExpiresAt       time.Time
	Services        map[ServiceKind]Service
}

// HasService reports whether the device exposes a service of kind.
func (d *Device) HasService(kind ServiceKind) bool {
	_, ok := d.Services[kind]
	return ok
}

// ProtocolInfo is the 4-tuple carried by a DIDL-Lite <res protocolInfo=...>
// attribute and by ConnectionManager's GetProtocolInfo Sink/Source lists
//.
type ProtocolInfo struct {
	Protocol    string
	Network     string
	ContentType string
	Extra       string
}

// ParseProtocolInfo parses a single "protocol:network:content-type:extra"
// token. ConnectionManager's GetProtocolInfo skips malformed tokens rather
// than failing the whole call.
func ParseProtocolInfo(s string) (ProtocolInfo, bool) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return ProtocolInfo{}, false
	}
	return ProtocolInfo{Protocol: parts[0], Network: parts[1], ContentType: parts[2], Extra: parts[3]}, true
}

func (p ProtocolInfo) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.Protocol, p.Network, p.ContentType, p.Extra)
}

// Resource is one <res> entry of an Item: a URL plus its ProtocolInfo.
type Resource struct {
	URL          string
	ProtocolInfo ProtocolInfo
}

// Item is a ContentDirectory Browse/Search result entry.
type Item struct {
	ObjectID    string
	ParentID    string
	RefID       string
	Restricted  bool
	IsContainer bool
	ChildCount  *int
	Title       string
	Class       string
	Resources   []Resource
	AlbumArt    map[string]string
	Meta        map[string]string
}
