// Package extractor parses normalized chunk fragments into raw address
// records.
package extractor

import (
	"context"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/prg-tools/prgload/internal/model"
)

// RecordName is the record element name after namespace normalization.
const RecordName = "PRG_PunktAdresowy"

// LocalityAdminLevel is the position of the locality name inside the
// repeating administrative-unit list. PRG orders the list voivodeship,
// county, commune, locality; the depth is a convention of the dataset,
// not a schema guarantee, so it lives here as a named constant.
const LocalityAdminLevel = 3

// ErrBadPosition marks a record whose position field is missing or not
// a pair of finite numbers. The record is skipped; the chunk continues.
var ErrBadPosition = eris.New("extractor: missing or malformed position")

// Item is one extracted record, or the record-level reason it could
// not be extracted.
type Item struct {
	Record model.RawRecord
	Err    error
}

// prgRecord mirrors the normalized fragment schema. Every field is
// optional; known data-quality gaps in the source leave elements out.
type prgRecord struct {
	AdminUnits  []string `xml:"jednostkaAdmnistracyjna"`
	PostalCode  string   `xml:"kodPocztowy"`
	Street      string   `xml:"ulica"`
	HouseNumber string   `xml:"numerPorzadkowy"`
	Position    string   `xml:"pozycja>pos"`
}

// Stream decodes address records from a normalized fragment and sends
// them in document order. Record-level problems travel inside Item;
// only a fragment that fails to parse as well-formed XML ends up on the
// error channel. Both channels close when decoding completes.
func Stream(ctx context.Context, r io.Reader) (<-chan Item, <-chan error) {
	outCh := make(chan Item, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := xml.NewDecoder(r)
		decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, eris.Wrapf(err, "extractor: unsupported charset %q", charset)
			}
			return enc.NewDecoder().Reader(input), nil
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "extractor: context cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "extractor: read token")
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != RecordName {
				continue
			}

			var rec prgRecord
			if err := decoder.DecodeElement(&rec, &se); err != nil {
				errCh <- eris.Wrap(err, "extractor: decode record")
				return
			}

			select {
			case outCh <- toItem(rec):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "extractor: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// toItem maps a decoded record to the raw field tuple.
func toItem(rec prgRecord) Item {
	pos, err := parsePosition(rec.Position)
	if err != nil {
		return Item{Err: err}
	}

	return Item{Record: model.RawRecord{
		PostalCode:  strings.TrimSpace(rec.PostalCode),
		Locality:    adminUnit(rec.AdminUnits, LocalityAdminLevel),
		Street:      strings.TrimSpace(rec.Street),
		HouseNumber: strings.TrimSpace(rec.HouseNumber),
		Position:    pos,
	}}
}

// parsePosition splits the space-separated position field. The source
// projection lists northing before easting, so the first component is
// Y and the second is X.
func parsePosition(s string) (model.PlanarCoord, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return model.PlanarCoord{}, eris.Wrapf(ErrBadPosition, "%q", s)
	}

	northing, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return model.PlanarCoord{}, eris.Wrapf(ErrBadPosition, "northing %q", fields[0])
	}
	easting, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return model.PlanarCoord{}, eris.Wrapf(ErrBadPosition, "easting %q", fields[1])
	}
	if !isFinite(northing) || !isFinite(easting) {
		return model.PlanarCoord{}, eris.Wrapf(ErrBadPosition, "%q", s)
	}

	return model.PlanarCoord{X: easting, Y: northing}, nil
}

// adminUnit returns the unit at the given level, or empty when the
// list is shallower than the convention expects.
func adminUnit(units []string, level int) string {
	if level >= len(units) {
		return ""
	}
	return strings.TrimSpace(units[level])
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
