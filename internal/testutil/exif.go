package testutil

import (
	"bytes"
	"encoding/binary"
	"sort"
	"testing"
)

// EXIF describes the tags written by WithEXIF. Zero fields are omitted.
// Rationals are {numerator, denominator}.
type EXIF struct {
	Make             string
	Model            string
	DateTimeOriginal string // "2006:01:02 15:04:05"
	ISO              uint16
	FNumber          [2]uint32
	ExposureTime     [2]uint32
	FocalLength      [2]uint32
	PixelXDimension  uint32
	PixelYDimension  uint32
}

const (
	tiffASCII    = 2
	tiffShort    = 3
	tiffLong     = 4
	tiffRational = 5
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

func asciiEntry(tag uint16, s string) ifdEntry {
	data := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: tiffASCII, count: uint32(len(data)), data: data}
}

func shortEntry(tag, v uint16) ifdEntry {
	data := make([]byte, 2)
	le.PutUint16(data, v)
	return ifdEntry{tag: tag, typ: tiffShort, count: 1, data: data}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	data := make([]byte, 4)
	le.PutUint32(data, v)
	return ifdEntry{tag: tag, typ: tiffLong, count: 1, data: data}
}

func rationalEntry(tag uint16, r [2]uint32) ifdEntry {
	data := make([]byte, 8)
	le.PutUint32(data[0:], r[0])
	le.PutUint32(data[4:], r[1])
	return ifdEntry{tag: tag, typ: tiffRational, count: 1, data: data}
}

// encodeIFD lays out one directory starting at offset start, followed by the
// values that do not fit in the 4-byte entry slot.
func encodeIFD(start uint32, entries []ifdEntry) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	var head, extra bytes.Buffer
	dataOff := start + uint32(2+12*len(entries)+4)

	_ = binary.Write(&head, le, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&head, le, e.tag)
		_ = binary.Write(&head, le, e.typ)
		_ = binary.Write(&head, le, e.count)
		if len(e.data) <= 4 {
			slot := make([]byte, 4)
			copy(slot, e.data)
			head.Write(slot)
			continue
		}
		_ = binary.Write(&head, le, dataOff+uint32(extra.Len()))
		extra.Write(e.data)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	_ = binary.Write(&head, le, uint32(0))

	return append(head.Bytes(), extra.Bytes()...)
}

// TIFF returns the little-endian TIFF structure holding e.
func (e EXIF) TIFF() []byte {
	var ifd0, sub []ifdEntry
	if e.Make != "" {
		ifd0 = append(ifd0, asciiEntry(0x010F, e.Make))
	}
	if e.Model != "" {
		ifd0 = append(ifd0, asciiEntry(0x0110, e.Model))
	}
	if e.ExposureTime[1] != 0 {
		sub = append(sub, rationalEntry(0x829A, e.ExposureTime))
	}
	if e.FNumber[1] != 0 {
		sub = append(sub, rationalEntry(0x829D, e.FNumber))
	}
	if e.ISO != 0 {
		sub = append(sub, shortEntry(0x8827, e.ISO))
	}
	if e.DateTimeOriginal != "" {
		sub = append(sub, asciiEntry(0x9003, e.DateTimeOriginal))
	}
	if e.FocalLength[1] != 0 {
		sub = append(sub, rationalEntry(0x920A, e.FocalLength))
	}
	if e.PixelXDimension != 0 {
		sub = append(sub, longEntry(0xA002, e.PixelXDimension))
	}
	if e.PixelYDimension != 0 {
		sub = append(sub, longEntry(0xA003, e.PixelYDimension))
	}

	const ifd0Start = 8
	if len(sub) > 0 {
		// the pointer value fits in its slot, so the length is stable
		probe := encodeIFD(ifd0Start, append(append([]ifdEntry{}, ifd0...), longEntry(0x8769, 0)))
		subStart := uint32(ifd0Start + len(probe))
		if subStart%2 == 1 {
			subStart++
		}
		ifd0 = append(ifd0, longEntry(0x8769, subStart))
		head := encodeIFD(ifd0Start, ifd0)

		var out bytes.Buffer
		out.WriteString("II")
		_ = binary.Write(&out, le, uint16(42))
		_ = binary.Write(&out, le, uint32(ifd0Start))
		out.Write(head)
		for uint32(out.Len()) < subStart {
			out.WriteByte(0)
		}
		out.Write(encodeIFD(subStart, sub))
		return out.Bytes()
	}

	var out bytes.Buffer
	out.WriteString("II")
	_ = binary.Write(&out, le, uint16(42))
	_ = binary.Write(&out, le, uint32(ifd0Start))
	out.Write(encodeIFD(ifd0Start, ifd0))
	return out.Bytes()
}

// WithEXIF inserts an APP1 EXIF segment directly after the SOI marker of a
// JPEG.
func WithEXIF(t testing.TB, jpegData []byte, e EXIF) []byte {
	t.Helper()

	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		t.Fatalf("WithEXIF: input is not a JPEG")
	}

	payload := append([]byte("Exif\x00\x00"), e.TIFF()...)
	if len(payload)+2 > 0xFFFF {
		t.Fatalf("WithEXIF: EXIF payload too large (%d bytes)", len(payload))
	}

	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}

// CanonR5 is the EXIF block of a typical sunset exposure.
func CanonR5() EXIF {
	return EXIF{
		Make:             "Canon",
		Model:            "Canon EOS R5",
		DateTimeOriginal: "2024:06:15 18:30:00",
		ISO:              200,
		FNumber:          [2]uint32{28, 10},
		ExposureTime:     [2]uint32{1, 250},
		FocalLength:      [2]uint32{50, 1},
	}
}
