package tidycsv

import (
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type dataType byte

const (
	dataTypeNoCompression dataType = iota
	dataTypeGzip
	dataTypeZip
	dataTypeXZ
	dataTypeBZip2
)

// Byte code signatures from https://stackoverflow.com/a/19127748/199475
var byteCodeSigs = map[dataType][]byte{
	dataTypeGzip:  {0x1f, 0x8b, 0x08},
	dataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	dataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	dataTypeBZip2: {0x42, 0x5a, 0x68},
}

// detectDataType matches the leading bytes of a stream against a set of
// known compression signatures.
func detectDataType(head []byte) dataType {
Outer:
	for dt, sig := range byteCodeSigs {
		if len(head) < len(sig) {
			continue
		}
		for position := range sig {
			if head[position] != sig[position] {
				continue Outer
			}
		}
		return dt
	}

	return dataTypeNoCompression
}

// Open opens the file at path, wrapping it in a decompressor when its
// leading bytes mark a gzip, zip, xz, or bzip2 stream. A zip archive is
// read as a stream of its first entry. Closing the returned ReadCloser
// closes the file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 6)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	switch detectDataType(head[:n]) {
	case dataTypeGzip:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedReadCloser{gzr, f}, nil
	case dataTypeZip:
		zr := zipstream.NewReader(f)
		if _, err := zr.Next(); err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedReadCloser{zr, f}, nil
	case dataTypeXZ:
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedReadCloser{xzr, f}, nil
	case dataTypeBZip2:
		return &wrappedReadCloser{bzip2.NewReader(f), f}, nil
	}

	// No signature detected, so assume uncompressed text.
	return f, nil
}

// wrappedReadCloser reads decompressed bytes while owning the underlying
// file handle.
type wrappedReadCloser struct {
	io.Reader
	file *os.File
}

func (w *wrappedReadCloser) Close() error {
	return w.file.Close()
}
