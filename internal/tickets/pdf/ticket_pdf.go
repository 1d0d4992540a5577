package pdf

import (
	"bytes"
	"fmt"
	"image/png"

	"ms-storefront/internal/models"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const fontFamily = "goregular"

// TicketPDFGenerator lays out a printable A4 ticket with its QR code.
type TicketPDFGenerator struct{}

func NewTicketPDFGenerator() *TicketPDFGenerator {
	return &TicketPDFGenerator{}
}

func (g *TicketPDFGenerator) Generate(ticket models.Ticket, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(fontFamily, goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	if err := addHeader(pdf); err != nil {
		return nil, err
	}

	pdf.SetY(110)
	if err := addTicketInfo(pdf, ticket); err != nil {
		return nil, err
	}

	if len(qrCode) > 0 {
		if err := addQRCode(pdf, qrCode, pdf.GetY()+20); err != nil {
			return nil, err
		}
	}

	pdf.SetY(780)
	if err := addFooter(pdf); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf) error {
	if err := pdf.SetFont(fontFamily, "", 24); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(50)
	pdf.SetY(50)
	return pdf.Cell(nil, "EVENT TICKET")
}

func addTicketInfo(pdf *gopdf.GoPdf, ticket models.Ticket) error {
	if err := pdf.SetFont(fontFamily, "", 13); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}

	info := []struct {
		Label string
		Value string
	}{
		{"Ticket", ticket.TicketTypeName},
		{"Ticket ID", ticket.TicketID},
		{"Event ID", ticket.EventID},
		{"Order ID", ticket.OrderID},
		{"Price", ticket.PriceAtPurchase.StringFixed(2)},
		{"Issued", ticket.IssuedAt.UTC().Format("2006-01-02 15:04 MST")},
		{"Status", ticket.Status},
	}

	for _, item := range info {
		pdf.SetX(50)
		if err := pdf.Cell(nil, item.Label+": "+item.Value); err != nil {
			return err
		}
		pdf.Br(22)
	}
	return nil
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte, y float64) error {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		return fmt.Errorf("failed to decode QR code: %w", err)
	}
	rect := &gopdf.Rect{W: 220, H: 220}
	if err := pdf.ImageFrom(img, 50, y, rect); err != nil {
		return fmt.Errorf("failed to draw QR code: %w", err)
	}
	pdf.SetY(y + rect.H)
	return nil
}

func addFooter(pdf *gopdf.GoPdf) error {
	if err := pdf.SetFont(fontFamily, "", 10); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(50)
	return pdf.Cell(nil, "Present this code at the entrance. Each ticket admits one person once.")
}
