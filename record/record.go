// Package record defines a travel package record and its on-disk
// encoding as a siser frame.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DateFormat is the format of StartDate in frames and JSON
const DateFormat = "2006-01-02"

// Package is a single travel package. PackageID is the key; it's up to
// the caller to keep it unique.
type Package struct {
	PackageID   string
	Destination string
	HotelName   string
	// only the calendar date is stored, as UTC midnight; years 0 to 9999
	StartDate time.Time
	// in days
	Duration int
	Price    float64
}

// Date returns t as a date at UTC midnight
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses date in YYYY-MM-DD format
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

func (p *Package) String() string {
	return fmt.Sprintf("Package{%s %s, %s, %s, %d days, %.2f}", p.PackageID, p.Destination, p.HotelName, p.StartDate.Format(DateFormat), p.Duration, p.Price)
}

// Equal returns true if p and o have the same field values
func (p *Package) Equal(o *Package) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.PackageID == o.PackageID &&
		p.Destination == o.Destination &&
		p.HotelName == o.HotelName &&
		p.StartDate.Equal(o.StartDate) &&
		p.Duration == o.Duration &&
		math.Float64bits(p.Price) == math.Float64bits(o.Price)
}

type packageJSON struct {
	PackageID   string  `json:"package_id"`
	Destination string  `json:"destination"`
	HotelName   string  `json:"hotel_name"`
	StartDate   string  `json:"start_date"`
	Duration    int     `json:"duration"`
	Price       float64 `json:"price"`
}

func (p *Package) MarshalJSON() ([]byte, error) {
	v := packageJSON{
		PackageID:   p.PackageID,
		Destination: p.Destination,
		HotelName:   p.HotelName,
		StartDate:   p.StartDate.Format(DateFormat),
		Duration:    p.Duration,
		Price:       p.Price,
	}
	return json.Marshal(v)
}

func (p *Package) UnmarshalJSON(d []byte) error {
	var v packageJSON
	if err := json.Unmarshal(d, &v); err != nil {
		return err
	}
	date, err := ParseDate(v.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start_date '%s': %w", v.StartDate, err)
	}
	*p = Package{
		PackageID:   v.PackageID,
		Destination: v.Destination,
		HotelName:   v.HotelName,
		StartDate:   date,
		Duration:    v.Duration,
		Price:       v.Price,
	}
	return nil
}
