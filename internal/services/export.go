package services

import (
	"bytes"
	"embed"
	"strings"
	"unicode/utf8"

	"galaxy_ai_go_backend/internal/models"

	"github.com/jung-kurt/gofpdf"
)

const (
	exportDateLayout = "January 2, 2006 15:04"
	exportFont       = "DejaVu"
)

//go:embed fonts/*.ttf
var exportFonts embed.FS

var exportFontFiles = map[string]string{
	"":  "fonts/DejaVuSansCondensed.ttf",
	"B": "fonts/DejaVuSansCondensed-Bold.ttf",
	"I": "fonts/DejaVuSansCondensed-Oblique.ttf",
}

// RenderConversationPDF lays out a conversation as an A4 transcript.
func RenderConversationPDF(conversation *models.Conversation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	for style, file := range exportFontFiles {
		data, err := exportFonts.ReadFile(file)
		if err != nil {
			return nil, err
		}
		pdf.AddUTF8FontFromBytes(exportFont, style, data)
	}
	pdf.SetTitle(conversation.Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont(exportFont, "B", 16)
	pdf.MultiCell(0, 8, pdfText(conversation.Title), "", "L", false)
	pdf.SetFont(exportFont, "I", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, conversation.CreatedAt.Format(exportDateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	for _, msg := range conversation.Messages {
		speaker := "Galaxy AI:"
		if msg.Sender == models.SenderUser {
			speaker = "You:"
		}
		pdf.SetFont(exportFont, "B", 11)
		pdf.CellFormat(0, 6, speaker, "", 1, "L", false, 0, "")
		pdf.SetFont(exportFont, "", 11)
		pdf.MultiCell(0, 5, pdfText(msg.Content), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pdfText keeps text within the Basic Multilingual Plane, the range gofpdf
// can encode for UTF-8 fonts. Other runes (emoji, invalid bytes) become U+FFFD.
func pdfText(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF || r == utf8.RuneError {
			return utf8.RuneError
		}
		return r
	}, strings.ToValidUTF8(s, string(utf8.RuneError)))
}
