package gena

import (
	"encoding/xml"
	"fmt"
)

// Property is one <e:property> child of a NOTIFY's propertyset body: a
// single changed state-variable name and its raw (possibly nested-XML)
// text value.
type Property struct {
	Name  string
	Value string
}

// Event is one decoded GENA NOTIFY, still carrying raw property text;
// callers that expect a LastChange-shaped variable parse it further with
// xmlutil.ParseLastChange.
type Event struct {
	SID        string
	SEQ        int
	Properties []Property
}

type propertysetXML struct {
	XMLName    xml.Name `xml:"propertyset"`
	Properties []struct {
		Any []struct {
			XMLName xml.Name
			Inner   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"property"`
}

// parsePropertySet parses a NOTIFY body's <e:propertyset> document into an
// ordered Property list.
func parsePropertySet(body []byte) ([]Property, error) {
	var doc propertysetXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse propertyset: %w", err)
	}
	var props []Property
	for _, p := range doc.Properties {
		for _, v := range p.Any {
			props = append(props, Property{Name: v.XMLName.Local, Value: v.Inner})
		}
	}
	return props, nil
}
