package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	ticketWidth  = 600
	ticketHeight = 900
	qrSize       = 360
)

var (
	ink    = color.RGBA{R: 0x1f, G: 0x1f, B: 0x24, A: 0xff}
	accent = color.RGBA{R: 0x6b, G: 0x21, B: 0xa8, A: 0xff}
)

// TicketArt is everything printed on one ticket image.
type TicketArt struct {
	EventName  string
	ShowName   string
	DateText   string
	PersonName string
	Sequence   int
	Total      int
	VerifyURL  string
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) RenderTicket(ctx context.Context, art TicketArt) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(art.VerifyURL) == "" {
		return nil, fmt.Errorf("render ticket: empty verify url")
	}

	img := image.NewRGBA(image.Rect(0, 0, ticketWidth, ticketHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, ticketWidth, 120), &image.Uniform{C: accent}, image.Point{}, draw.Src)

	drawCentered(img, strings.ToUpper(art.EventName), 30, 2, color.White)
	drawCentered(img, art.ShowName, 70, 3, color.White)
	drawCentered(img, art.DateText, 160, 2, ink)

	qr, err := qrcode.New(art.VerifyURL, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("render ticket: qr: %w", err)
	}
	qrImg := qr.Image(qrSize)
	x0 := (ticketWidth - qrSize) / 2
	draw.Draw(img, image.Rect(x0, 220, x0+qrSize, 220+qrSize), qrImg, image.Point{}, draw.Src)

	drawCentered(img, art.PersonName, 620, 3, ink)
	if art.Total > 0 {
		drawCentered(img, fmt.Sprintf("%d / %d", art.Sequence, art.Total), 690, 2, ink)
	}
	drawCentered(img, art.VerifyURL, 840, 1, ink)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render ticket: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCentered writes text with the bitmap face, scaled up by an integer
// factor, horizontally centered with its top at y.
func drawCentered(dst *image.RGBA, text string, y, scale int, c color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Height

	maxWidth := ticketWidth - 40
	for scale > 1 && width*scale > maxWidth {
		scale--
	}
	if width*scale > maxWidth {
		runes := []rune(text)
		keep := maxWidth / face.Advance
		if keep < len(runes) {
			text = string(runes[:keep])
			width = d.MeasureString(text).Ceil()
		}
	}

	small := image.NewRGBA(image.Rect(0, 0, width, height))
	d.Dst = small
	d.Src = image.NewUniform(c)
	d.Dot = fixed.P(0, face.Ascent)
	d.DrawString(text)

	x := (dst.Bounds().Dx() - width*scale) / 2
	target := image.Rect(x, y, x+width*scale, y+height*scale)
	xdraw.NearestNeighbor.Scale(dst, target, small, small.Bounds(), xdraw.Over, nil)
}
