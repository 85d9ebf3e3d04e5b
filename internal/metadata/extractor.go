package metadata

import (
	"bytes"
	"image"
	"strconv"
	"strings"
	"time"

	"photo-vault/internal/logging"
	"photo-vault/internal/photo"

	// Container decoders for the header probe
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// exifDateLayout is the EXIF 2.3 DateTime format.
const exifDateLayout = "2006:01:02 15:04:05"

var log = logging.For("metadata")

// Extractor reads embedded metadata. The zero value is ready to use.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns every field it can resolve from data. Dimensions come from
// the container header, then EXIF pixel tags, then a full raster decode.
// Ingest validation already requires a readable header, so the raster tier
// serves callers that hand Extract unvalidated bytes.
func (e *Extractor) Extract(data []byte) (md photo.Metadata) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("recovered from panic while reading metadata: %v", r)
		}
	}()

	x := decodeEXIF(data)
	if x != nil {
		readCamera(x, &md)
	}

	w, h, source := resolveDimensions(
		dimensionProbe{"container", func() (int, int, bool) { return containerDimensions(data) }},
		dimensionProbe{"exif", func() (int, int, bool) { return exifDimensions(x) }},
		dimensionProbe{"raster", func() (int, int, bool) { return rasterDimensions(data) }},
	)
	if source != "" {
		md.Width, md.Height = &w, &h
		log.Debug("dimensions %dx%d resolved from %s", w, h, source)
	} else {
		log.Debug("dimensions could not be resolved")
	}

	return md
}

type dimensionProbe struct {
	name string
	fn   func() (int, int, bool)
}

// resolveDimensions returns the first probe answer with positive sides.
func resolveDimensions(probes ...dimensionProbe) (int, int, string) {
	for _, p := range probes {
		if w, h, ok := p.fn(); ok && w > 0 && h > 0 {
			return w, h, p.name
		}
	}
	return 0, 0, ""
}

func containerDimensions(data []byte) (int, int, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func exifDimensions(x *exif.Exif) (int, int, bool) {
	if x == nil {
		return 0, 0, false
	}
	w, okW := tagInt(x, exif.PixelXDimension)
	h, okH := tagInt(x, exif.PixelYDimension)
	return w, h, okW && okH
}

func rasterDimensions(data []byte) (int, int, bool) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), true
}

// decodeEXIF returns nil when data carries no readable EXIF block. Partial
// results from a sub-directory failure are kept.
func decodeEXIF(data []byte) *exif.Exif {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		if x == nil || exif.IsCriticalError(err) {
			log.Debug("no usable EXIF data: %v", err)
			return nil
		}
		log.Debug("partial EXIF data: %v", err)
	}
	return x
}

func readCamera(x *exif.Exif, md *photo.Metadata) {
	if model := cameraModel(tagString(x, exif.Make), tagString(x, exif.Model)); model != "" {
		md.CameraModel = &model
	}

	if iso, ok := tagInt(x, exif.ISOSpeedRatings); ok && iso > 0 {
		s := strconv.Itoa(iso)
		md.ISO = &s
	}

	if num, den, ok := tagRational(x, exif.FNumber); ok && num > 0 {
		s := "f/" + formatDecimal(num, den)
		md.Aperture = &s
	}

	if num, den, ok := tagRational(x, exif.ExposureTime); ok && num > 0 {
		s := formatExposure(num, den) + "s"
		md.ShutterSpeed = &s
	}

	if num, den, ok := tagRational(x, exif.FocalLength); ok {
		if mm, ok := ParseFocalLength(formatDecimal(num, den) + " mm"); ok {
			md.FocalLength = &mm
		}
	}

	if raw := tagString(x, exif.DateTimeOriginal); raw != "" {
		if t, ok := ParseCaptureTime(raw); ok {
			md.CaptureDate = &t
		} else {
			log.Debug("unparseable DateTimeOriginal %q", raw)
		}
	}
}

// cameraModel joins make and model, skipping the make when the model
// already starts with it ("Canon" + "Canon EOS R5").
func cameraModel(maker, model string) string {
	maker, model = strings.TrimSpace(maker), strings.TrimSpace(model)
	switch {
	case model == "":
		return ""
	case maker == "":
		return model
	case strings.HasPrefix(strings.ToLower(model), strings.ToLower(maker)):
		return model
	default:
		return maker + " " + model
	}
}

// ParseCaptureTime parses an EXIF timestamp. The value carries no zone, so
// the wall clock is kept as-is in UTC.
func ParseCaptureTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if raw == "" || strings.HasPrefix(raw, "0000") {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(exifDateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseFocalLength reads the leading number of strings like "50 mm",
// "50mm" or "4.2 mm" and truncates it to whole millimetres.
func ParseFocalLength(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(f), true
}

func formatDecimal(num, den int64) string {
	return strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
}

// formatExposure renders sub-second exposures as a reduced fraction.
func formatExposure(num, den int64) string {
	if num >= den {
		return formatDecimal(num, den)
	}
	g := gcd(num, den)
	num, den = num/g, den/g
	if num != 1 {
		// 3/10 reads better as 0.3
		return formatDecimal(num, den)
	}
	return "1/" + strconv.FormatInt(den, 10)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.StringVal {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func tagInt(x *exif.Exif, name exif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.IntVal || tag.Count == 0 {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func tagRational(x *exif.Exif, name exif.FieldName) (int64, int64, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count == 0 {
		return 0, 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}
