// Package model defines the address-point domain types shared by the
// split/extract/transform/load pipeline.
package model

import (
	"github.com/twpayne/go-geom"
)

// PlanarCoord is a point in the source national grid (PUWG 1992 /
// EPSG:2180). X is easting, Y is northing, both in metres.
type PlanarCoord struct {
	X float64
	Y float64
}

// GeoCoord is a point in WGS84 geographic degrees.
type GeoCoord struct {
	Lat float64
	Lon float64
}

// Point returns the coordinate as a go-geom point in lon/lat axis order.
func (g GeoCoord) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{g.Lon, g.Lat})
}

// AddressPoint is one geocoded address record ready for persistence.
// By the time a record reaches the loader its coordinate has already
// been reprojected; the planar form never crosses that boundary.
type AddressPoint struct {
	PostalCode  string
	Locality    string
	Street      string
	HouseNumber string
	Coord       GeoCoord
}

// Row returns the record as a bulk-insert row matching the
// address_points column order.
func (a AddressPoint) Row() []any {
	return []any{a.PostalCode, a.Locality, a.Street, a.HouseNumber, a.Coord.Lat, a.Coord.Lon}
}

// RawRecord holds the field tuple extracted from one source record
// before coordinate transformation.
type RawRecord struct {
	PostalCode  string
	Locality    string
	Street      string
	HouseNumber string
	Position    PlanarCoord
}
