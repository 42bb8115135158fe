package xmlutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

// RawResource is one <res> child of a DIDL-Lite object, not yet resolved to
// a domain ProtocolInfo.
type RawResource struct {
	ProtocolInfo string
	URL          string
}

// RawDIDLObject is one <item> or <container> of a parsed DIDL-Lite
// document, in document order: callers paging through Browse/Search
// results depend on that order being preserved.
type RawDIDLObject struct {
	ID          string
	ParentID    string
	RefID       string
	Restricted  bool
	IsContainer bool
	ChildCount  *int
	Title       string
	Class       string
	Resources   []RawResource
	AlbumArt    map[string]string // dlna:profileID -> URL
	Extra       map[string]string // other child element local name -> text
}

// DIDLLite is the parsed result of a <DIDL-Lite> document.
type DIDLLite struct {
	Objects []RawDIDLObject
}

type didlObjectXML struct {
	ID         string `xml:"id,attr"`
	ParentID   string `xml:"parentID,attr"`
	RefID      string `xml:"refID,attr"`
	Restricted string `xml:"restricted,attr"`
	ChildCount *int   `xml:"childCount,attr"`
	Title      string `xml:"title"`
	Class      string `xml:"class"`
	Resources  []struct {
		ProtocolInfo string `xml:"protocolInfo,attr"`
		URL          string `xml:",chardata"`
	} `xml:"res"`
	AlbumArtURIs []struct {
		ProfileID string `xml:"profileID,attr"`
		URL       string `xml:",chardata"`
	} `xml:"albumArtURI"`
	Any []anyXML `xml:",any"`
}

// ParseDIDLLite parses the inner DIDL-Lite document carried by a Browse or
// Search ActionResult's Result argument.
func ParseDIDLLite(data []byte) (*DIDLLite, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	result := &DIDLLite{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse didl-lite: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		isContainer := se.Name.Local == "container"
		if se.Name.Local != "item" && !isContainer {
			continue
		}

		var raw didlObjectXML
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return nil, fmt.Errorf("parse didl-lite %s: %w", se.Name.Local, err)
		}

		obj := RawDIDLObject{
			ID:          raw.ID,
			ParentID:    raw.ParentID,
			RefID:       raw.RefID,
			Restricted:  raw.Restricted == "1" || raw.Restricted == "true",
			IsContainer: isContainer,
			ChildCount:  raw.ChildCount,
			Title:       raw.Title,
			Class:       raw.Class,
		}
		for _, r := range raw.Resources {
			obj.Resources = append(obj.Resources, RawResource{ProtocolInfo: r.ProtocolInfo, URL: r.URL})
		}
		for _, a := range raw.AlbumArtURIs {
			if obj.AlbumArt == nil {
				obj.AlbumArt = map[string]string{}
			}
			obj.AlbumArt[a.ProfileID] = a.URL
		}
		for _, a := range raw.Any {
			switch a.XMLName.Local {
			case "title", "class", "res", "albumArtURI":
				continue
			}
			if obj.Extra == nil {
				obj.Extra = map[string]string{}
			}
			obj.Extra[a.XMLName.Local] = a.Text
		}

		result.Objects = append(result.Objects, obj)
	}

	return result, nil
}

// anyXML generically captures an element's attributes, text, and children,
// used to decode XML whose element set isn't known ahead of time (DIDL-Lite
// extra properties, LastChange state-variable payloads).
type anyXML struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []anyXML   `xml:",any"`
}

func (a anyXML) attr(name string) (string, bool) {
	for _, at := range a.Attrs {
		if at.Name.Local == name {
			return at.Value, true
		}
	}
	return "", false
}

// LastChangeVariable is one changed state variable inside a LastChange
// event's <InstanceID> element.
type LastChangeVariable struct {
	Name  string
	Value string
}

// LastChangeInstance groups the changed variables reported for one
// InstanceID in a LastChange event document.
type LastChangeInstance struct {
	InstanceID int
	Variables  []LastChangeVariable
}

// ParseLastChange parses the nested XML document carried as text inside a
// service's LastChange state variable.
func ParseLastChange(data []byte) ([]LastChangeInstance, error) {
	var root anyXML
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse LastChange: %w", err)
	}

	var instances []LastChangeInstance
	for _, child := range root.Children {
		if child.XMLName.Local != "InstanceID" {
			continue
		}
		idStr, _ := child.attr("val")
		id, _ := strconv.Atoi(idStr)

		inst := LastChangeInstance{InstanceID: id}
		for _, v := range child.Children {
			val, ok := v.attr("val")
			if !ok {
				continue
			}
			inst.Variables = append(inst.Variables, LastChangeVariable{Name: v.XMLName.Local, Value: val})
		}
		instances = append(instances, inst)
	}
	return instances, nil
}
