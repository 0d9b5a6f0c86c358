package snapshot

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	lserrors "lockstep/internal/errors"
	"lockstep/util"
)

// Markers that prefix a compressed snapshot.
const (
	ZlibMarker = "lockstep_zlib\x00"
	LZ4Marker  = "lockstep_lz4\x00"
)

// Format is the encoding of a received snapshot.
type Format int

const (
	FormatRaw Format = iota
	FormatZlib
	FormatLZ4
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatZlib:
		return "zlib"
	case FormatLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Detect reports the format of data from its marker.
func Detect(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte(ZlibMarker)):
		return FormatZlib
	case bytes.HasPrefix(data, []byte(LZ4Marker)):
		return FormatLZ4
	default:
		return FormatRaw
	}
}

// Unpack returns the snapshot contents of data.  Raw data is returned
// as is; compressed data is inflated into a new slice.
func Unpack(data []byte) ([]byte, Format, error) {
	f := Detect(data)
	var r io.Reader
	switch f {
	case FormatRaw:
		return data, f, nil
	case FormatZlib:
		zr, err := zlib.NewReader(bytes.NewReader(data[len(ZlibMarker):]))
		if err != nil {
			return nil, f, lserrors.WrapTransfer("inflate", err)
		}
		defer zr.Close()
		r = zr
	case FormatLZ4:
		r = lz4.NewReader(bytes.NewReader(data[len(LZ4Marker):]))
	}

	out, err := inflate(r)
	if err != nil {
		return nil, f, lserrors.WrapTransfer("inflate", err)
	}
	return out, f, nil
}

// inflate drains r, refusing output larger than MaxSize.
func inflate(r io.Reader) ([]byte, error) {
	bufp := util.GetBuf()
	defer util.PutBuf(bufp)

	var out bytes.Buffer
	// Hide ReadFrom so the pooled buffer is the one used.
	n, err := io.CopyBuffer(struct{ io.Writer }{&out}, io.LimitReader(r, MaxSize+1), *bufp)
	if err != nil {
		return nil, err
	}
	if n > MaxSize {
		return nil, fmt.Errorf("inflated snapshot exceeds %d bytes", MaxSize)
	}
	return out.Bytes(), nil
}

// Pack encodes raw in format f, prefixed with its marker.  Servers and
// tests use it to produce snapshots.
func Pack(raw []byte, f Format) ([]byte, error) {
	var out bytes.Buffer
	switch f {
	case FormatRaw:
		out.Write(raw)
	case FormatZlib:
		out.WriteString(ZlibMarker)
		zw := zlib.NewWriter(&out)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case FormatLZ4:
		out.WriteString(LZ4Marker)
		lw := lz4.NewWriter(&out)
		if _, err := lw.Write(raw); err != nil {
			return nil, err
		}
		if err := lw.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %v", f)
	}
	return out.Bytes(), nil
}
