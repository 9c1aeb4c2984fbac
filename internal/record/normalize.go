package record

import (
	"net/url"
	"regexp"
	"strings"

	"kvksnapshot/internal/openkvk"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

const mapsSearchUrl = "https://www.google.com/maps/search/?api=1&query="

type NormalizeOptions struct {
	// YYYY-MM-DD, the day the record is built
	CaptureDate string
	MapsLinks   bool
}

// Normalize maps a listing and its optional profile into a Record.
//
//   - sector: profile activity description, else the listing industry codes, else the profile ones
//   - website: listing website, else the profile website
//   - start_or_update_date: profile updated_at
func Normalize(listing openkvk.Listing, profile openkvk.Profile, hasProfile bool, opts NormalizeOptions) Record {
	if !hasProfile {
		profile = openkvk.Profile{}
	}

	var street, houseNumber string
	if listing.Location != nil {
		street = string(listing.Location.Street)
		houseNumber = string(listing.Location.HouseNumber)
	}
	address := collapse(street + " " + houseNumber)
	city := strings.TrimSpace(listing.City())

	sector := strings.TrimSpace(string(profile.ActivityDescription))
	if sector == "" {
		sector = strings.Join(listing.IndustryCodes, ", ")
	}
	if sector == "" {
		sector = strings.Join(profile.IndustryCodes, ", ")
	}

	website := strings.TrimSpace(string(listing.Website))
	if website == "" {
		website = strings.TrimSpace(string(profile.Website))
	}

	var mapsLink string
	if opts.MapsLinks && address != "" {
		query := address
		if city != "" {
			query += ", " + city
		}
		mapsLink = mapsSearchUrl + url.QueryEscape(query)
	}

	return Record{
		RegistryNumber:    strings.TrimSpace(string(listing.RegistryNumber)),
		Name:              strings.TrimSpace(string(listing.Name)),
		City:              city,
		StreetAddress:     address,
		MapsLink:          mapsLink,
		SectorText:        sector,
		Website:           website,
		StartOrUpdateDate: strings.TrimSpace(string(profile.UpdatedAt)),
		CaptureDate:       opts.CaptureDate,
	}
}
