package media

import (
	"fmt"
	"sync"

	"photo-vault/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogSettings maps the application log level onto the libvips verbosity
// and returns a handler that forwards libvips messages to our logger. libvips
// drops messages less severe than the verbosity before calling the handler.
func vipsLogSettings(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	verbosity := vips.LogLevelWarning
	switch level {
	case logging.LevelDebug:
		verbosity = vips.LogLevelInfo
	case logging.LevelWarn:
		verbosity = vips.LogLevelError
	case logging.LevelError:
		verbosity = vips.LogLevelCritical
	}

	handler := func(domain string, l vips.LogLevel, msg string) {
		switch l {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}
	return verbosity, handler
}

// InitVips starts libvips. Call once at startup, before any Generator using
// the vips backend renders.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	threshold, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, threshold)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// renderWithVips decodes data with libvips, applies EXIF orientation, shrinks
// the long edge to maxEdge when larger and exports JPEG.
func renderWithVips(data []byte, maxEdge, quality int) ([]byte, int, int, error) {
	if !IsVipsAvailable() {
		return nil, 0, 0, fmt.Errorf("libvips not available")
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, 0, 0, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	w, h := FitDimensions(ref.Width(), ref.Height(), maxEdge)
	if w != ref.Width() || h != ref.Height() {
		if err := ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
			return nil, 0, 0, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	params := vips.NewJpegExportParams()
	params.Quality = quality
	params.StripMetadata = true
	params.OptimizeCoding = true

	out, _, err := ref.ExportJpeg(params)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vips export failed: %w", err)
	}
	return out, ref.Width(), ref.Height(), nil
}
