package xmlutil

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"golang.org/x/exp/slices"
)

// ValueRange is a state variable's optional allowed-value numeric range.
type ValueRange struct {
	Min, Max, Step float64
	Present        bool
}

// StateVariable describes one <stateVariable> entry of a service's SCPD.
type StateVariable struct {
	Name       string
	DataType   string
	SendEvents bool
	Range      ValueRange
}

// SCPD is the parsed Service Control Protocol Description of a service:
// its supported actions and its state variable table.
type SCPD struct {
	Actions        []string
	StateVariables []StateVariable
}

// HasAction reports whether name is in the SCPD's action list.
func (s *SCPD) HasAction(name string) bool {
	return slices.Contains(s.Actions, name)
}

// Variable looks up a state variable by name.
func (s *SCPD) Variable(name string) (StateVariable, bool) {
	for _, v := range s.StateVariables {
		if v.Name == name {
			return v, true
		}
	}
	return StateVariable{}, false
}

type scpdXML struct {
	XMLName    xml.Name `xml:"scpd"`
	ActionList struct {
		Actions []struct {
			Name string `xml:"name"`
		} `xml:"action"`
	} `xml:"actionList"`
	ServiceStateTable struct {
		Variables []struct {
			SendEvents string `xml:"sendEvents,attr"`
			Name       string `xml:"name"`
			DataType   string `xml:"dataType"`
			AllowedValueRange *struct {
				Minimum string `xml:"minimum"`
				Maximum string `xml:"maximum"`
				Step    string `xml:"step"`
			} `xml:"allowedValueRange"`
		} `xml:"stateVariable"`
	} `xml:"serviceStateTable"`
}

// ParseSCPD parses a service's SCPD XML document.
func ParseSCPD(data []byte) (*SCPD, error) {
	var doc scpdXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scpd: %w", err)
	}

	scpd := &SCPD{}
	for _, a := range doc.ActionList.Actions {
		if a.Name != "" {
			scpd.Actions = append(scpd.Actions, a.Name)
		}
	}

	for _, v := range doc.ServiceStateTable.Variables {
		sv := StateVariable{
			Name:       v.Name,
			DataType:   v.DataType,
			SendEvents: v.SendEvents == "yes",
		}
		if v.AllowedValueRange != nil {
			min, errMin := strconv.ParseFloat(v.AllowedValueRange.Minimum, 64)
			max, errMax := strconv.ParseFloat(v.AllowedValueRange.Maximum, 64)
			step, errStep := strconv.ParseFloat(v.AllowedValueRange.Step, 64)
			if errMin == nil && errMax == nil {
				if errStep != nil {
					step = 1
				}
				sv.Range = ValueRange{Min: min, Max: max, Step: step, Present: true}
			}
		}
		scpd.StateVariables = append(scpd.StateVariables, sv)
	}

	return scpd, nil
}
