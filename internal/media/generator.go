package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"photo-vault/internal/logging"
	"photo-vault/internal/mediatypes"
	"photo-vault/internal/metrics"
	"photo-vault/internal/photo"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Backend selects the resize implementation.
type Backend string

// Backends
const (
	BackendImaging Backend = "imaging"
	BackendVips    Backend = "vips"
)

// ParseBackend maps a config value to a Backend, defaulting to imaging.
func ParseBackend(s string) Backend {
	if Backend(s) == BackendVips {
		return BackendVips
	}
	return BackendImaging
}

// Config controls derivative sizes and encoding.
type Config struct {
	ThumbnailSize int
	PreviewSize   int
	Quality       int
	Backend       Backend
}

// DefaultConfig returns the standard thumbnail and preview settings.
func DefaultConfig() Config {
	return Config{
		ThumbnailSize: 300,
		PreviewSize:   1280,
		Quality:       85,
		Backend:       BackendImaging,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ThumbnailSize <= 0 {
		c.ThumbnailSize = def.ThumbnailSize
	}
	if c.PreviewSize <= 0 {
		c.PreviewSize = def.PreviewSize
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = def.Quality
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	return c
}

// MaxEdge returns the long-edge bound for a derivative variant.
func (c Config) MaxEdge(v photo.Variant) int {
	if v == photo.VariantThumbnail {
		return c.ThumbnailSize
	}
	return c.PreviewSize
}

// Derivative is one encoded rendition.
type Derivative struct {
	Variant photo.Variant
	Data    []byte
	Width   int
	Height  int
}

// MimeType is always JPEG.
func (d *Derivative) MimeType() string {
	return mediatypes.JPEG
}

// Extension is always "jpg".
func (d *Derivative) Extension() string {
	return "jpg"
}

// Generator renders thumbnails and previews.
type Generator struct {
	cfg Config
	log *logging.Logger
}

// NewGenerator creates a generator; zero fields in cfg take their defaults.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg.withDefaults(),
		log: logging.For("media"),
	}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate renders the thumbnail and the preview of data concurrently. Either
// both succeed or a *photo.ProcessingError is returned and neither is.
func (g *Generator) Generate(ctx context.Context, data []byte) (thumb, preview *Derivative, err error) {
	var img image.Image
	if !g.useVips() {
		img, err = DecodeImage(data)
		if err != nil {
			return nil, nil, err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		d, renderErr := g.render(ctx, data, img, photo.VariantThumbnail)
		thumb = d
		return renderErr
	})
	eg.Go(func() error {
		d, renderErr := g.render(ctx, data, img, photo.VariantPreview)
		preview = d
		return renderErr
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return thumb, preview, nil
}

func (g *Generator) useVips() bool {
	return g.cfg.Backend == BackendVips && IsVipsAvailable()
}

// render produces one variant. img may be nil when the vips backend is in
// use; it is decoded lazily if vips fails and imaging takes over.
func (g *Generator) render(ctx context.Context, data []byte, img image.Image, v photo.Variant) (*Derivative, error) {
	if err := ctx.Err(); err != nil {
		return nil, &photo.ProcessingError{Op: "render " + string(v), Err: err}
	}

	maxEdge := g.cfg.MaxEdge(v)
	backend := string(BackendImaging)
	start := time.Now()

	var (
		out  []byte
		w, h int
		err  error
	)
	if img == nil && g.useVips() {
		backend = string(BackendVips)
		out, w, h, err = renderWithVips(data, maxEdge, g.cfg.Quality)
		if err != nil {
			g.log.Warn("vips render of %s failed, falling back to imaging: %v", v, err)
			metrics.DerivativeErrors.WithLabelValues(string(v), backend).Inc()
			backend = string(BackendImaging)
			img, err = DecodeImage(data)
			if err != nil {
				return nil, err
			}
		}
	}
	if out == nil {
		out, w, h, err = g.renderWithImaging(img, maxEdge)
	}
	if err == nil {
		err = verifyJPEG(out, w, h)
	}
	if err != nil {
		metrics.DerivativeErrors.WithLabelValues(string(v), backend).Inc()
		return nil, &photo.ProcessingError{Op: "render " + string(v), Err: err}
	}

	metrics.DerivativeDuration.WithLabelValues(string(v), backend).Observe(time.Since(start).Seconds())
	metrics.DerivativeBytes.WithLabelValues(string(v)).Observe(float64(len(out)))
	g.log.Debug("rendered %s %dx%d (%d bytes) with %s", v, w, h, len(out), backend)

	return &Derivative{Variant: v, Data: out, Width: w, Height: h}, nil
}

func (g *Generator) renderWithImaging(img image.Image, maxEdge int) ([]byte, int, int, error) {
	b := img.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), maxEdge)

	resized := img
	if w != b.Dx() || h != b.Dy() {
		resized = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(g.cfg.Quality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// verifyJPEG checks that out is a non-empty JPEG of the expected size.
func verifyJPEG(out []byte, w, h int) error {
	if len(out) == 0 {
		return fmt.Errorf("encoder produced no output")
	}
	dims, format, err := ProbeDimensions(out)
	if err != nil {
		return fmt.Errorf("encoded output is unreadable: %w", err)
	}
	if format != "jpeg" {
		return fmt.Errorf("encoded output is %s, want jpeg", format)
	}
	if dims.Width != w || dims.Height != h {
		return fmt.Errorf("encoded output is %dx%d, want %dx%d", dims.Width, dims.Height, w, h)
	}
	return nil
}
