// Package xmlutil holds the XML parse helpers shared by device discovery,
// SCPD binding, DIDL-Lite browsing, and GENA event decoding. It never emits
// XML of its own beyond what SOAP argument encoding needs; authoring
// DIDL-Lite metadata is out of scope.
package xmlutil

import (
	"encoding/xml"
	"fmt"
	"net/url"
)

// ServiceDescription is one <service> entry from a device description
// document, URLs still relative to the document's base.
type ServiceDescription struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
	SCPDURL     string `xml:"SCPDURL"`
}

// DeviceDescription is the parsed result of a device's root XML document.
type DeviceDescription struct {
	UDN             string
	FriendlyName    string
	DeviceType      string
	URLBase         string
	PresentationURL string
	Services        []ServiceDescription
}

type deviceDescriptionXML struct {
	XMLName xml.Name `xml:"root"`
	URLBase string   `xml:"URLBase"`
	Device  struct {
		DeviceType      string `xml:"deviceType"`
		FriendlyName    string `xml:"friendlyName"`
		UDN             string `xml:"UDN"`
		PresentationURL string `xml:"presentationURL"`
		ServiceList     struct {
			Services []ServiceDescription `xml:"service"`
		} `xml:"serviceList"`
	} `xml:"device"`
}

// ParseDeviceDescription parses a UPnP device description document (the
// body fetched from a SSDP LOCATION URL).
func ParseDeviceDescription(data []byte) (*DeviceDescription, error) {
	var doc deviceDescriptionXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse device description: %w", err)
	}
	if doc.Device.UDN == "" {
		return nil, fmt.Errorf("parse device description: missing UDN")
	}
	return &DeviceDescription{
		UDN:             doc.Device.UDN,
		FriendlyName:    doc.Device.FriendlyName,
		DeviceType:      doc.Device.DeviceType,
		URLBase:         doc.URLBase,
		PresentationURL: doc.Device.PresentationURL,
		Services:        doc.Device.ServiceList.Services,
	}, nil
}

// ResolveServiceURLs resolves the service's relative URLs against base
// (URLBase if the device declared one, otherwise the description's own
// LOCATION URL) per RFC 3986.
func ResolveServiceURLs(base *url.URL, svc ServiceDescription) (control, eventSub, scpd *url.URL, err error) {
	resolve := func(ref string) (*url.URL, error) {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, err
		}
		return base.ResolveReference(u), nil
	}
	if control, err = resolve(svc.ControlURL); err != nil {
		return nil, nil, nil, fmt.Errorf("resolve controlURL: %w", err)
	}
	if eventSub, err = resolve(svc.EventSubURL); err != nil {
		return nil, nil, nil, fmt.Errorf("resolve eventSubURL: %w", err)
	}
	if scpd, err = resolve(svc.SCPDURL); err != nil {
		return nil, nil, nil, fmt.Errorf("resolve SCPDURL: %w", err)
	}
	return control, eventSub, scpd, nil
}
