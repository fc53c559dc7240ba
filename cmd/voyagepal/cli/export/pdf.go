// Package export renders a finished plan as a printable PDF: the itinerary,
// the analysis cost summary, and a QR code that opens the route in a maps app.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
)

// Document is everything printed on the itinerary PDF.
type Document struct {
	TripID      string
	Request     trip.TripRequest
	Analysis    trip.DetailedAnalysis
	Itinerary   trip.OptimizedItinerary
	GeneratedAt time.Time
}

// ErrNoSteps is returned for an itinerary with nothing to print.
var ErrNoSteps = errors.New("itinerary has no steps")

const mapsDirURL = "https://www.google.com/maps/dir/"

// MapsURL builds a directions link through the itinerary's stops in order.
// Stops use the address when known, else the location name and destination.
func MapsURL(destination string, steps []trip.Step) string {
	stops := make([]string, 0, len(steps))
	for _, s := range steps {
		stop := s.LocationName + ", " + destination
		if s.Address != nil && *s.Address != "" {
			stop = *s.Address
		}
		if len(stops) > 0 && stops[len(stops)-1] == stop {
			continue
		}
		stops = append(stops, stop)
	}
	if len(stops) == 0 {
		return ""
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", stops[len(stops)-1])
	if len(stops) > 1 {
		q.Set("origin", stops[0])
	}
	if len(stops) > 2 {
		q.Set("waypoints", strings.Join(stops[1:len(stops)-1], "|"))
	}
	q.Set("travelmode", travelMode(steps))
	return mapsDirURL + "?" + q.Encode()
}

func travelMode(steps []trip.Step) string {
	for _, s := range steps {
		if s.TransportModeToNext == nil {
			continue
		}
		switch trip.Transport(*s.TransportModeToNext) {
		case trip.TransportWalking:
			return "walking"
		case trip.TransportPublicTransit:
			return "transit"
		case trip.TransportDriving, trip.TransportRideShare:
			return "driving"
		}
	}
	return "driving"
}

// WritePDF renders doc to w.
func WritePDF(w io.Writer, doc Document) error {
	if len(doc.Itinerary.Steps) == 0 {
		return ErrNoSteps
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetTitle("VoyagePal itinerary: "+doc.Request.Destination, true)
	pdf.SetCreator("voyagepal", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Day trip to %s", doc.Request.Destination)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s, back by %s. Trip %s", doc.Request.TripDate, doc.Request.ReturnTime, doc.TripID)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	writeFeasibility(pdf, tr, doc.Itinerary)
	writeSteps(pdf, tr, doc.Itinerary.Steps)
	writeCosts(pdf, tr, doc.Analysis, doc.Itinerary)

	if link := MapsURL(doc.Request.Destination, doc.Itinerary.Steps); link != "" {
		if err := writeRouteQR(pdf, tr, link); err != nil {
			return err
		}
	}

	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	pdf.SetY(-20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 6, "Generated "+generated.Format("02 Jan 2006 15:04"), "T", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}

func writeFeasibility(pdf *gofpdf.Fpdf, tr func(string) string, it trip.OptimizedItinerary) {
	label := map[trip.Feasibility]string{
		trip.FeasibilityPossible:    "Feasible",
		trip.FeasibilityTight:       "Tight but possible",
		trip.FeasibilityNotPossible: "Not possible as planned",
	}[it.FeasibilityStatus]
	if label == "" {
		label = string(it.FeasibilityStatus)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr(label), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if it.FeasibilityNotes != nil && *it.FeasibilityNotes != "" {
		pdf.MultiCell(0, 5, tr(*it.FeasibilityNotes), "", "L", false)
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Activities %d min, travel %d min", it.TotalActivityTimeMinutes, it.TotalTravelTimeMinutes), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func writeSteps(pdf *gofpdf.Fpdf, tr func(string) string, steps []trip.Step) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 238, 250)
	pdf.CellFormat(28, 7, "Time", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 7, "Location", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 7, "Activity", "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, s := range steps {
		pdf.CellFormat(28, 6, s.StartTime+" - "+s.EndTime, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, tr(truncate(s.LocationName, 34)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(truncate(s.Activity, 60)), "1", 1, "L", false, 0, "")

		var extra []string
		if s.TransportModeToNext != nil && *s.TransportModeToNext != "" {
			leg := "then " + strings.ReplaceAll(*s.TransportModeToNext, "_", " ")
			if s.EstimatedTravelTimeMinutes != nil {
				leg += fmt.Sprintf(" (%d min)", *s.EstimatedTravelTimeMinutes)
			}
			extra = append(extra, leg)
		}
		if s.Notes != nil && *s.Notes != "" {
			extra = append(extra, *s.Notes)
		}
		if len(extra) > 0 {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.MultiCell(0, 4, tr(strings.Join(extra, ". ")), "", "L", false)
			pdf.SetFont("Helvetica", "", 9)
		}
	}
	pdf.Ln(4)
}

func writeCosts(pdf *gofpdf.Fpdf, tr func(string) string, a trip.DetailedAnalysis, it trip.OptimizedItinerary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Costs", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	line := func(label string, v *float64) {
		if v == nil {
			return
		}
		pdf.CellFormat(70, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("$%.2f", *v), "", 1, "L", false, 0, "")
	}
	line("Gas", a.EstimatedGasCostUSD)
	line("Public transit", a.EstimatedPublicTransitCostUSD)
	line("Ride share", a.EstimatedRideShareCostUSD)
	total := it.TotalEstimatedCostUSD
	line("Total estimated", &total)

	if a.GeneralMoneyTips != "" {
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(a.GeneralMoneyTips), "", "L", false)
	}
	if len(a.OtherCarryItems) > 0 {
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr("Bring: "+strings.Join(a.OtherCarryItems, ", ")), "", "L", false)
	}
	pdf.Ln(3)
}

func writeRouteQR(pdf *gofpdf.Fpdf, tr func(string) string, link string) error {
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode route QR code: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "png"}
	pdf.RegisterImageOptionsReader("route", opts, bytes.NewReader(png))

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, tr("Scan for directions"), "", 1, "L", false, 0, "")
	pdf.ImageOptions("route", pdf.GetX(), pdf.GetY(), 36, 36, true, opts, 0, link)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
