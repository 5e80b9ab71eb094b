package artifacts

import (
	"archive/zip"
	"bytes"
	"context"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderSample(t *testing.T, r *Renderer) []byte {
	t.Helper()
	data, err := r.RenderTicket(context.Background(), TicketArt{
		EventName:  "Festival de Inverno",
		ShowName:   "Jazz Night",
		DateText:   "12/07 21h",
		PersonName: "Ana Souza",
		Sequence:   1,
		Total:      4,
		VerifyURL:  "https://tickets.example.com/ticket/abc123",
	})
	require.NoError(t, err)
	return data
}

func TestRenderTicket(t *testing.T) {
	data := renderSample(t, NewRenderer())

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ticketWidth, img.Bounds().Dx())
	assert.Equal(t, ticketHeight, img.Bounds().Dy())
}

func TestRenderTicketNeedsVerifyURL(t *testing.T) {
	_, err := NewRenderer().RenderTicket(context.Background(), TicketArt{PersonName: "Ana"})
	assert.Error(t, err)
}

func TestRenderTicketLongNames(t *testing.T) {
	_, err := NewRenderer().RenderTicket(context.Background(), TicketArt{
		ShowName:   "A show with a name long enough to overflow the ticket width several times over",
		PersonName: "Maria Aparecida dos Santos Oliveira de Albuquerque e Silva",
		VerifyURL:  "https://tickets.example.com/ticket/abc123",
	})
	assert.NoError(t, err)
}

func TestPDFs(t *testing.T) {
	r := NewRenderer()
	page := renderSample(t, r)

	single, err := r.TicketPDF(page)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(single, []byte("%PDF")))

	bundle, err := r.BundlePDF([][]byte{page, page, page})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bundle, []byte("%PDF")))
	assert.Greater(t, len(bundle), len(single))

	_, err = r.BundlePDF(nil)
	assert.Error(t, err)

	_, err = r.TicketPDF([]byte("not a png"))
	assert.Error(t, err)
}

func TestArchive(t *testing.T) {
	data, err := NewRenderer().Archive([]File{
		{Name: "a.png", Data: []byte("png")},
		{Name: "a.pdf", Data: []byte("pdf")},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a.png", zr.File[0].Name)

	f, err := zr.File[1].Open()
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(content))
}
