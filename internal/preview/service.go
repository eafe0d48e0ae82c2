package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/internal/certconfig"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

// Page geometry in points, mirroring the paper certificate layout. The PDF is
// a landscape letter page with values drawn at the positions of the printed
// form's blanks.
const (
	pageWidth  = 792.0
	pageHeight = 612.0

	line1 = 287.0
	line2 = 250.0
	line3 = 212.0
)

type drawSpot struct {
	x, y     float64
	centered bool
}

// Result is the rendered preview.
type Result struct {
	FileName      string
	Base64Content string
}

// Service renders a certificate's field values onto a PDF page so a licensee
// can overlay-print the paper form. The render is pure: no persistence, no
// status checks beyond requiring the fields to exist.
type Service interface {
	Render(ctx context.Context, cert *models.Certificate) (*Result, error)
}

type service struct{}

// NewService builds the preview renderer.
func NewService() Service {
	return &service{}
}

func (s *service) Render(_ context.Context, cert *models.Certificate) (*Result, error) {
	if cert == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "certificate required")
	}
	if cert.DateOfIssue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "certificate has no issued fields to preview")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)

	// PDF origin is top-left; the layout coordinates are measured from the
	// bottom edge like the paper form.
	y := func(fromBottom float64) float64 { return pageHeight - fromBottom }

	drawText := func(spots []drawSpot, value string) {
		for _, spot := range spots {
			x := spot.x
			if spot.centered {
				x -= pdf.GetStringWidth(value) / 2
			}
			pdf.Text(x, y(spot.y), value)
		}
	}

	drawText([]drawSpot{{x: 95, y: 543, centered: true}, {x: 665, y: 55, centered: true}}, cert.DisplayName())
	drawText([]drawSpot{{x: 115, y: 520, centered: true}}, certconfig.CountryName(cert.CountryOfOrigin))
	drawText([]drawSpot{{x: 665, y: 551, centered: true}}, cert.AES)
	drawText([]drawSpot{{x: 200, y: line1, centered: true}}, mdy(cert.DateOfIssue))
	drawText([]drawSpot{{x: 390, y: line1, centered: true}}, mdy(cert.DateOfExpiry))
	drawText([]drawSpot{{x: 650, y: line1, centered: true}}, usd(cert.ShippedValue))
	drawText([]drawSpot{{x: 200, y: line2, centered: true}}, cert.Exporter)
	drawText([]drawSpot{{x: 650, y: line2, centered: true}}, count(cert.NumberOfParcels))
	drawText([]drawSpot{{x: 240, y: line3, centered: true}}, cert.Consignee)
	drawText([]drawSpot{{x: 665, y: line3, centered: true}}, carats(cert.CaratWeight))
	if cert.HSCode != nil {
		drawText([]drawSpot{{x: 350, y: 175, centered: true}}, cert.HSCode.Value)
	}

	drawAddress(pdf, 300, y(line2-5), cert.ExporterAddress)
	drawAddress(pdf, 300, y(line3-5), cert.ConsigneeAddr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render certificate pdf")
	}

	return &Result{
		FileName:      fmt.Sprintf("%s.pdf", cert.DisplayName()),
		Base64Content: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// drawAddress lays out a multi-line address inside its frame, one line per row.
func drawAddress(pdf *gofpdf.Fpdf, x, topY float64, value string) {
	const lineHeight = 11.0
	for i, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pdf.Text(x, topY+float64(i)*lineHeight, line)
	}
}

func mdy(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("01/02/2006")
}

func usd(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return "$" + d.StringFixed(2)
}

func carats(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func count(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}
