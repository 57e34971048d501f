package assignment

import (
	"fmt"
	"math"
)

// Location is a physical meetup place, in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" toml:"lat"`
	Lon float64 `json:"lon" toml:"lon"`
}

// Valid reports whether l lies within the usual latitude and longitude bounds.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

func (l Location) String() string {
	return fmt.Sprintf("(%.5f, %.5f)", l.Lat, l.Lon)
}

// LocationIndex returns the zero based index of the location hosting the one
// based meetup meetupIdx, out of numLocations registered locations.
func LocationIndex(meetupIdx uint64, p Params, numLocations uint64) (uint64, error) {
	return Fn(meetupIdx, p, numLocations)
}

// MeetupLocation returns the location hosting the one based meetup meetupIdx.
func MeetupLocation(meetupIdx uint64, locations []Location, p Params) (Location, error) {
	idx, err := LocationIndex(meetupIdx, p, uint64(len(locations)))
	if err != nil {
		return Location{}, err
	}
	return locations[idx], nil
}

// MeetupTime returns the start of a meetup held at loc, in the same unit as
// attestingStart and oneDay (milliseconds on chain). Meetups happen at high
// sun: the first ones at +180 degrees of longitude, then moving west for one
// day. Longitudes are truncated to whole degrees. Negative results clamp to 0.
func MeetupTime(loc Location, attestingStart, oneDay uint64, offset int64) uint64 {
	perDegree := int64(oneDay / 360)
	lon := int64(math.Abs(math.Trunc(loc.Lon) - 180))
	t := int64(attestingStart) + lon*perDegree + offset
	if t < 0 {
		return 0
	}
	return uint64(t)
}
