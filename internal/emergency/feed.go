package emergency

import "encoding/json"

// geoJSON mirrors the VicEmergency events feed document.
type geoJSON struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string     `json:"type"`
	Geometry   *geometry  `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Type        string     `json:"type"`
	Coordinates coords     `json:"coordinates,omitempty"`
	Geometries  []geometry `json:"geometries,omitempty"`
}

// coords accepts both a Point ([lon, lat]) and nested polygon rings, keeping
// only the first vertex in the nested case.
type coords []float64

func (c *coords) UnmarshalJSON(data []byte) error {
	var point []float64
	if err := json.Unmarshal(data, &point); err == nil {
		*c = point
		return nil
	}

	var rings [][][]float64
	if err := json.Unmarshal(data, &rings); err == nil {
		if len(rings) > 0 && len(rings[0]) > 0 && len(rings[0][0]) >= 2 {
			*c = rings[0][0]
			return nil
		}
	}

	*c = nil
	return nil
}

// properties carries the event metadata we use. The feed returns id fields as
// either strings or numbers depending on the source agency.
type properties struct {
	FeedType    string     `json:"feedType"`
	SourceID    flexString `json:"sourceId"`
	SourceTitle string     `json:"sourceTitle"`
	ID          flexString `json:"id"`
	Category1   string     `json:"category1"`
	Category2   string     `json:"category2"`
	Status      string     `json:"status"`
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
	WebHeadline string     `json:"webHeadline"`
	WebBody     string     `json:"webBody"`
	Text        string     `json:"text"`
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = flexString(string(data))
	return nil
}
