// Package xmlparse implements a streaming extractor for the booking site's
// non-standard XML: records are encoded as repeated flat sibling tags
// (<id>, <name>, and optional flag tags) rather than nested <record>
// wrappers. A generic object-deserialization library would misalign the
// id/name pairs, so this is a small hand-rolled state machine instead,
// mirroring the way quick_xml's token reader is driven in the reference
// implementation.
package xmlparse

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Tuple is one flushed (id, name, flags) record.
type Tuple struct {
	ID    string
	Name  string
	Flags map[string]string
}

// extract runs the streaming state machine over r, treating any start tag
// named in flagTags as an additional pending slot captured into Tuple.Flags.
func extract(r io.Reader, flagTags ...string) ([]Tuple, error) {
	flagSet := make(map[string]bool, len(flagTags))
	for _, t := range flagTags {
		flagSet[t] = true
	}

	dec := xml.NewDecoder(r)

	var tuples []Tuple
	var currentID, currentName string
	haveID, haveName := false, false
	currentFlags := make(map[string]string)

	flush := func() {
		if haveID && haveName {
			flags := currentFlags
			if len(flags) == 0 {
				flags = nil
			}
			tuples = append(tuples, Tuple{ID: currentID, Name: currentName, Flags: flags})
		}
		currentID, currentName = "", ""
		haveID, haveName = false, false
		currentFlags = make(map[string]string)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlparse: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		name := start.Name.Local
		switch {
		case name == "id":
			if haveID {
				flush()
			}
			text, err := readText(dec)
			if err != nil {
				return nil, fmt.Errorf("xmlparse: reading <id>: %w", err)
			}
			currentID = text
			haveID = true
		case name == "name":
			text, err := readText(dec)
			if err != nil {
				return nil, fmt.Errorf("xmlparse: reading <name>: %w", err)
			}
			currentName = text
			haveName = true
		case flagSet[name]:
			text, err := readText(dec)
			if err != nil {
				return nil, fmt.Errorf("xmlparse: reading <%s>: %w", name, err)
			}
			currentFlags[name] = text
		}
	}

	flush()
	return tuples, nil
}

// readText consumes the CharData immediately following a start tag and
// returns its trimmed text. If the element has no text (self-closing or an
// immediate end tag), it returns the empty string.
func readText(dec *xml.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if cd, ok := tok.(xml.CharData); ok {
		return strings.TrimSpace(string(cd)), nil
	}
	return "", nil
}

// RouteRecord is one route entry from mode=line:full.
type RouteRecord struct {
	ID         string
	Name       string
	ChangeFlag string // switchChangeableFlg, optional
}

// ParseRoutes extracts route records from a mode=line:full response.
func ParseRoutes(xmlBody string) ([]RouteRecord, error) {
	tuples, err := extract(strings.NewReader(xmlBody), "switchChangeableFlg")
	if err != nil {
		return nil, err
	}
	records := make([]RouteRecord, 0, len(tuples))
	for _, t := range tuples {
		records = append(records, RouteRecord{ID: t.ID, Name: t.Name, ChangeFlag: t.Flags["switchChangeableFlg"]})
	}
	return records, nil
}

// StationRecord is one station entry from mode=station_geton/station_getoff.
type StationRecord struct {
	ID   string
	Name string
}

// ParseStations extracts station records.
func ParseStations(xmlBody string) ([]StationRecord, error) {
	tuples, err := extract(strings.NewReader(xmlBody))
	if err != nil {
		return nil, err
	}
	records := make([]StationRecord, 0, len(tuples))
	for _, t := range tuples {
		records = append(records, StationRecord{ID: t.ID, Name: t.Name})
	}
	return records, nil
}

// DateRecord is one available-date entry from mode=date.
type DateRecord struct {
	ID   string // YYYYMMDD
	Name string
}

// ParseDates extracts available-date records.
func ParseDates(xmlBody string) ([]DateRecord, error) {
	tuples, err := extract(strings.NewReader(xmlBody))
	if err != nil {
		return nil, err
	}
	records := make([]DateRecord, 0, len(tuples))
	for _, t := range tuples {
		records = append(records, DateRecord{ID: t.ID, Name: t.Name})
	}
	return records, nil
}
