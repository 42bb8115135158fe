// Package soap implements the UPnP SOAP 1.1 action invocation pipeline:
// envelope construction, the POST, and ActionResult/Fault parsing
//.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"upnpcp/httpclient"
	"upnpcp/upnperrors"
)

// Arg is one named SOAP argument. A slice, not a map, so insertion order is
// preserved on the wire.
type Arg struct {
	Name  string
	Value string
}

// Action describes one outbound action invocation, already bound to a
// concrete service instance and control URL.
type Action struct {
	ServiceType string // urn:schemas-upnp-org:service:<kind>:<version>
	Name        string
	ControlURL  string
	Args        []Arg
}

// Fault is the decoded <s:Fault>/<UPnPError> body of an HTTP 500 response.
type Fault struct {
	Code        int
	Description string
}

// ActionResult is the outcome of a successful SOAP round trip: either a set
// of ordered out-arguments, or a populated Fault.
type ActionResult struct {
	Status  int
	RawBody []byte
	OutArgs []Arg
	Fault   *Fault
}

// Get looks up an out-argument by name.
func (r *ActionResult) Get(name string) (string, bool) {
	for _, a := range r.OutArgs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

const envelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
<u:%s xmlns:u="%s">%s</u:%s>
</s:Body>
</s:Envelope>`

// BuildEnvelope serializes an Action into a SOAP 1.1 request body.
func BuildEnvelope(a Action) []byte {
	var args bytes.Buffer
	for _, arg := range a.Args {
		args.WriteString("<")
		args.WriteString(arg.Name)
		args.WriteString(">")
		xml.EscapeText(&args, []byte(arg.Value))
		args.WriteString("</")
		args.WriteString(arg.Name)
		args.WriteString(">")
	}
	return []byte(fmt.Sprintf(envelopeTemplate, a.Name, a.ServiceType, args.String(), a.Name))
}

// Invoke POSTs the action's SOAP envelope and parses the response into an
// ActionResult, or a Fault for an HTTP 500 carrying <UPnPError>.
func Invoke(ctx context.Context, client *httpclient.Client, a Action) (*ActionResult, error) {
	body := BuildEnvelope(a)
	soapAction := fmt.Sprintf("%q", a.ServiceType+"#"+a.Name)

	status, _, respBody, err := client.Post(ctx, a.ControlURL, `text/xml; charset="utf-8"`, body, map[string]string{
		"SOAPACTION": soapAction,
	})
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		outArgs, err := parseActionResponse(a.Name, respBody)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Status: status, RawBody: respBody, OutArgs: outArgs}, nil

	case http.StatusInternalServerError:
		fault, err := parseFault(respBody)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Status: status, RawBody: respBody, Fault: fault}, nil

	default:
		return nil, &upnperrors.HTTPError{Status: status, Reason: http.StatusText(status)}
	}
}

type envelopeXML struct {
	Body struct {
		Raw []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// responseAnyXML captures an arbitrarily-named response element's ordered
// children as name/value pairs, the same generic-capture idiom xmlutil
// uses for LastChange events.
type responseAnyXML struct {
	XMLName  xml.Name
	Children []struct {
		XMLName xml.Name
		Text    string `xml:",chardata"`
	} `xml:",any"`
}

func parseActionResponse(actionName string, body []byte) ([]Arg, error) {
	var env envelopeXML
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, &upnperrors.UnexpectedError{Reason: "malformed SOAP envelope: " + err.Error()}
	}

	if len(bytes.TrimSpace(env.Body.Raw)) == 0 {
		return nil, nil
	}
	var resp responseAnyXML
	if err := xml.Unmarshal(env.Body.Raw, &resp); err != nil {
		return nil, &upnperrors.UnexpectedError{Reason: "malformed action response: " + err.Error()}
	}

	args := make([]Arg, 0, len(resp.Children))
	for _, c := range resp.Children {
		args = append(args, Arg{Name: c.XMLName.Local, Value: c.Text})
	}
	return args, nil
}

type faultXML struct {
	Body struct {
		Fault struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
			Detail      struct {
				UPnPError struct {
					ErrorCode        int    `xml:"errorCode"`
					ErrorDescription string `xml:"errorDescription"`
				} `xml:"UPnPError"`
				Raw []byte `xml:",innerxml"`
			} `xml:"detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

func parseFault(body []byte) (*Fault, error) {
	var env faultXML
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, &upnperrors.UnexpectedError{Reason: "malformed fault envelope: " + err.Error()}
	}
	f := env.Body.Fault
	if f.Detail.UPnPError.ErrorCode == 0 && f.Detail.UPnPError.ErrorDescription == "" {
		return nil, &upnperrors.UnexpectedError{Reason: "HTTP 500 without <UPnPError> detail"}
	}
	return &Fault{Code: f.Detail.UPnPError.ErrorCode, Description: f.Detail.UPnPError.ErrorDescription}, nil
}
