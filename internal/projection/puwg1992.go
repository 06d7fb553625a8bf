// Package projection converts between PUWG 1992 (EPSG:2180), the planar
// national grid used by the PRG dataset, and WGS84 geographic
// coordinates. All functions are pure and safe for concurrent use.
package projection

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/prg-tools/prgload/internal/model"
)

// ErrBadCoordinate marks a planar coordinate that is not a finite
// number inside the grid's defined domain. Records carrying one are
// skipped, not fatal.
var ErrBadCoordinate = eris.New("projection: coordinate outside grid domain")

// PUWG 1992 is a single-zone Transverse Mercator projection of the
// GRS80 ellipsoid.
const (
	semiMajor  = 6378137.0         // GRS80 a
	flattening = 1 / 298.257222101 // GRS80 f

	centralMeridian = 19.0 * math.Pi / 180 // 19°E
	scaleFactor     = 0.9993
	falseEasting    = 500000.0
	falseNorthing   = -5300000.0
)

// Grid domain covering Poland with margin. Values outside are data
// errors, not coordinates.
const (
	minGrid = 0.0
	maxGrid = 1e6
)

var (
	e2  = flattening * (2 - flattening) // first eccentricity squared
	e4  = e2 * e2
	e6  = e4 * e2
	ep2 = e2 / (1 - e2) // second eccentricity squared
	e1  = (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
)

// ToGeo converts a planar grid coordinate to WGS84 degrees.
func ToGeo(p model.PlanarCoord) (model.GeoCoord, error) {
	if !inDomain(p.X) || !inDomain(p.Y) {
		return model.GeoCoord{}, eris.Wrapf(ErrBadCoordinate, "x=%v y=%v", p.X, p.Y)
	}

	m := (p.Y - falseNorthing) / scaleFactor
	mu := m / (semiMajor * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := semiMajor / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (p.X - falseEasting) / (n1 * scaleFactor)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lam := centralMeridian + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return model.GeoCoord{
		Lat: phi * 180 / math.Pi,
		Lon: lam * 180 / math.Pi,
	}, nil
}

// FromGeo converts WGS84 degrees to the planar grid. It is the inverse
// of ToGeo and is the reference the round-trip tests check against.
func FromGeo(g model.GeoCoord) model.PlanarCoord {
	phi := g.Lat * math.Pi / 180
	lam := g.Lon * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := semiMajor / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := (lam - centralMeridian) * cosPhi

	x := falseEasting + scaleFactor*n*(a+
		(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)

	y := falseNorthing + scaleFactor*(meridianArc(phi)+
		n*tanPhi*(a*a/2+
			(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
			(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))

	return model.PlanarCoord{X: x, Y: y}
}

// meridianArc returns the ellipsoidal distance from the equator to
// latitude phi along the central meridian.
func meridianArc(phi float64) float64 {
	return semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func inDomain(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= minGrid && v <= maxGrid
}
