package lsp

import "encoding/json"

// Position is a zero-indexed line/character pair, as the wire protocol
// counts positions.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end position pair.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location anchors a range in a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// locationLink is the alternate definition result shape some servers
// return when link support is negotiated.
type locationLink struct {
	TargetURI            string `json:"targetUri"`
	TargetRange          Range  `json:"targetRange"`
	TargetSelectionRange Range  `json:"targetSelectionRange"`
}

// CallHierarchyItem identifies a symbol participating in a call graph:
// its position plus the containing scope range.
type CallHierarchyItem struct {
	Name           string `json:"name"`
	Kind           int    `json:"kind"`
	Detail         string `json:"detail,omitempty"`
	URI            string `json:"uri"`
	Range          Range  `json:"range"`
	SelectionRange Range  `json:"selectionRange"`
}

// IncomingCall is one caller of the root item, with its call sites.
type IncomingCall struct {
	From       CallHierarchyItem `json:"from"`
	FromRanges []Range           `json:"fromRanges"`
}

// OutgoingCall is one callee of the root item, with its call sites.
type OutgoingCall struct {
	To         CallHierarchyItem `json:"to"`
	FromRanges []Range           `json:"fromRanges"`
}

// decodeLocations normalizes the three definition result shapes the
// protocol allows: null, a single Location, an array of Locations, or an
// array of location links.
func decodeLocations(raw json.RawMessage) []Location {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var single Location
	if err := json.Unmarshal(raw, &single); err == nil && single.URI != "" {
		return []Location{single}
	}

	var many []json.RawMessage
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil
	}

	locs := make([]Location, 0, len(many))
	for _, item := range many {
		var loc Location
		if err := json.Unmarshal(item, &loc); err == nil && loc.URI != "" {
			locs = append(locs, loc)
			continue
		}
		var link locationLink
		if err := json.Unmarshal(item, &link); err == nil && link.TargetURI != "" {
			locs = append(locs, Location{URI: link.TargetURI, Range: link.TargetSelectionRange})
		}
	}
	return locs
}
