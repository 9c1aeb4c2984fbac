package openkvk

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Text is a string field that also accepts numbers, booleans and null,
// anything else decodes to the empty string instead of failing the payload.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text(decodeScalar(data))
	return nil
}

func (t Text) String() string {
	return string(t)
}

// TextList is a list field that also accepts a single scalar, entries that
// are not scalars are dropped.
type TextList []string

func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		value := decodeScalar(data)
		if value == "" {
			*l = nil
			return nil
		}
		*l = TextList{value}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make(TextList, 0, len(raw))
	for _, entry := range raw {
		value := decodeScalar(entry)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	*l = out
	return nil
}

func decodeScalar(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return ""
		}
		return strconv.FormatBool(b)
	case 'n', '[', '{':
		return ""
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ""
		}
		return n.String()
	}
}

// Location is the visiting address (bezoeklocatie) of a registration.
type Location struct {
	City        Text `json:"plaats"`
	Street      Text `json:"straat"`
	HouseNumber Text `json:"huisnummer"`
	PostalCode  Text `json:"postcode"`
}

func (l *Location) UnmarshalJSON(data []byte) error {
	type plain Location
	var out plain
	if !decodeObject(data, &out) {
		*l = Location{}
		return nil
	}
	*l = Location(out)
	return nil
}

type Link struct {
	Href Text `json:"href"`
}

func (l *Link) UnmarshalJSON(data []byte) error {
	type plain Link
	var out plain
	if !decodeObject(data, &out) {
		*l = Link{}
		return nil
	}
	*l = Link(out)
	return nil
}

type Links struct {
	Self Link `json:"self"`
}

func (l *Links) UnmarshalJSON(data []byte) error {
	type plain Links
	var out plain
	if !decodeObject(data, &out) {
		*l = Links{}
		return nil
	}
	*l = Links(out)
	return nil
}

// decodeObject unmarshals data into out only if it is a JSON object.
func decodeObject(data []byte, out any) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Listing is one registration as returned by a search page.
type Listing struct {
	RegistryNumber Text      `json:"kvknummer"`
	Name           Text      `json:"naam"`
	Location       *Location `json:"bezoeklocatie"`
	IndustryCodes  TextList  `json:"sbi"`
	Website        Text      `json:"website"`
	Links          *Links    `json:"_links"`
}

// City returns the visiting city, empty when the listing has no location.
func (l Listing) City() string {
	if l.Location == nil {
		return ""
	}
	return string(l.Location.City)
}

// SelfHref returns the profile reference, empty when absent.
func (l Listing) SelfHref() string {
	if l.Links == nil {
		return ""
	}
	return strings.TrimSpace(string(l.Links.Self.Href))
}

// Profile is the detailed registration behind a listing's self link.
type Profile struct {
	UpdatedAt           Text     `json:"updated_at"`
	ActivityDescription Text     `json:"activiteitomschrijving"`
	IndustryCodes       TextList `json:"sbi"`
	Website             Text     `json:"website"`
}

type searchEmbedded struct {
	Companies []json.RawMessage `json:"bedrijf"`
}

type searchPage struct {
	Embedded  *searchEmbedded `json:"_embedded"`
	PageCount Text            `json:"pageCount"`
}

// decodeSearchPage extracts the items and declared page count of a search
// response, items that fail to decode are skipped.
func decodeSearchPage(body []byte) ([]Listing, int, error) {
	var page searchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, err
	}

	pageCount := 1
	if page.PageCount != "" {
		n, err := strconv.Atoi(string(page.PageCount))
		if err == nil {
			pageCount = n
		}
	}
	if page.Embedded == nil {
		return nil, pageCount, nil
	}

	items := make([]Listing, 0, len(page.Embedded.Companies))
	for _, raw := range page.Embedded.Companies {
		var item Listing
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, pageCount, nil
}
