// Package record holds the snapshot row built for every emitted registration.
package record

// Record is one row of the snapshot. It is built once per emitted
// registration and never changed afterwards.
type Record struct {
	RegistryNumber    string
	Name              string
	City              string
	StreetAddress     string
	MapsLink          string
	SectorText        string
	Website           string
	StartOrUpdateDate string
	CaptureDate       string
}

// Columns is the CSV header, in the same order as Values.
var Columns = []string{
	"registry_number",
	"name",
	"city",
	"street_address",
	"maps_link",
	"sector_text",
	"website",
	"start_or_update_date",
	"capture_date",
}

func (r Record) Values() []string {
	return []string{
		r.RegistryNumber,
		r.Name,
		r.City,
		r.StreetAddress,
		r.MapsLink,
		r.SectorText,
		r.Website,
		r.StartOrUpdateDate,
		r.CaptureDate,
	}
}
