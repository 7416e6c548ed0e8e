// Package archive moves closed day files to and from checksummed,
// compressed cold storage.
//
// An archive is a 32-byte header followed by the compressed day file.
// The header records the codec, the raw size and an xxHash64 of the raw
// bytes, so a restore is verified bit-exact before it replaces anything.
package archive

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/arloliu/tickstore/compress"
	"github.com/arloliu/tickstore/errs"
	"github.com/arloliu/tickstore/format"
	"github.com/arloliu/tickstore/internal/hash"
	"github.com/arloliu/tickstore/internal/options"
)

// HeaderSize is the fixed archive header size.
const HeaderSize = 32

// Magic identifies an archived day file.
var Magic = [8]byte{'T', 'K', 'A', 'R', 'C', 'H', '1', '\n'}

// Version is the current archive format version.
const Version uint16 = 1

// Header is the fixed header at the start of an archive.
//
// Byte layout (packed, little-endian, zero padded to 32 bytes):
//
//	off 0  8B magic
//	off 8  2B version
//	off 10 1B codec id
//	off 11 1B reserved
//	off 12 4B reserved
//	off 16 8B raw size
//	off 24 8B xxHash64 of the raw file
type Header struct {
	Version  uint16
	Codec    format.CompressionType
	RawSize  uint64
	Checksum uint64
}

// Parse parses and validates an archive header.
func (h *Header) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return errs.ErrInvalidHeaderSize
	}
	var magic [8]byte
	copy(magic[:], data[0:8])
	if magic != Magic {
		return errs.ErrBadMagic
	}

	h.Version = binary.LittleEndian.Uint16(data[8:10])
	h.Codec = format.CompressionType(data[10])
	h.RawSize = binary.LittleEndian.Uint64(data[16:24])
	h.Checksum = binary.LittleEndian.Uint64(data[24:32])

	return nil
}

// Marshal serializes the header into dst, which must be at least
// HeaderSize bytes.
func (h *Header) Marshal(dst []byte) {
	clear(dst[:HeaderSize])
	copy(dst[0:8], Magic[:])
	binary.LittleEndian.PutUint16(dst[8:10], h.Version)
	dst[10] = uint8(h.Codec)
	binary.LittleEndian.PutUint64(dst[16:24], h.RawSize)
	binary.LittleEndian.PutUint64(dst[24:32], h.Checksum)
}

type archiverConfig struct {
	codec  format.CompressionType
	logger *zap.Logger
}

// Option configures an Archiver.
type Option = options.Option[*archiverConfig]

// WithCompression selects the archive codec. The default is Zstd.
func WithCompression(c format.CompressionType) Option {
	return options.New(func(cfg *archiverConfig) error {
		if _, err := compress.GetCodec(c); err != nil {
			return err
		}
		cfg.codec = c

		return nil
	})
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(cfg *archiverConfig) { cfg.logger = l })
}

// Archiver compresses closed day files into .tkz archives and restores
// them.
type Archiver struct {
	cfg archiverConfig
}

// NewArchiver creates an archiver with the given options.
func NewArchiver(opts ...Option) (*Archiver, error) {
	cfg := archiverConfig{
		codec:  format.CompressionZstd,
		logger: zap.NewNop(),
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Archiver{cfg: cfg}, nil
}

// ArchiveDay compresses the day file at path into "<path>.tkz" and
// returns the archive path. The source file is left in place; removing
// it after a successful archive is the caller's policy.
func (a *Archiver) ArchiveDay(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, path, err)
	}

	codec, err := compress.GetCodec(a.cfg.codec)
	if err != nil {
		return "", err
	}
	payload, err := codec.Compress(raw)
	if err != nil {
		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	hdr := Header{
		Version:  Version,
		Codec:    a.cfg.codec,
		RawSize:  uint64(len(raw)),
		Checksum: hash.Sum64(raw),
	}

	out := make([]byte, HeaderSize+len(payload))
	hdr.Marshal(out)
	copy(out[HeaderSize:], payload)

	archivePath := path + format.ArchiveExt
	if err := os.WriteFile(archivePath, out, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", archivePath, err)
	}

	a.cfg.logger.Info("archived day file",
		zap.String("path", path),
		zap.String("archive", archivePath),
		zap.String("codec", a.cfg.codec.String()),
		zap.Int("raw_bytes", len(raw)),
		zap.Int("archived_bytes", len(out)))

	return archivePath, nil
}

// RestoreDay decompresses the archive at archivePath to dstPath,
// verifying the checksum before the file is written. An empty dstPath
// restores next to the archive with the archive extension stripped.
func (a *Archiver) RestoreDay(archivePath, dstPath string) (string, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, archivePath, err)
	}

	var hdr Header
	if err := hdr.Parse(data); err != nil {
		return "", fmt.Errorf("%s: %w", archivePath, err)
	}

	codec, err := compress.GetCodec(hdr.Codec)
	if err != nil {
		return "", fmt.Errorf("%s: %w", archivePath, err)
	}
	raw, err := codec.Decompress(data[HeaderSize:])
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", archivePath, err)
	}

	if uint64(len(raw)) != hdr.RawSize || hash.Sum64(raw) != hdr.Checksum {
		return "", fmt.Errorf("%w: %s", errs.ErrChecksum, archivePath)
	}

	if dstPath == "" {
		dstPath = trimArchiveExt(archivePath)
	}
	if err := os.WriteFile(dstPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", dstPath, err)
	}

	return dstPath, nil
}

// Verify decompresses the archive in memory and checks its hash without
// writing anything.
func (a *Archiver) Verify(archivePath string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrOpenFailed, archivePath, err)
	}

	var hdr Header
	if err := hdr.Parse(data); err != nil {
		return fmt.Errorf("%s: %w", archivePath, err)
	}
	codec, err := compress.GetCodec(hdr.Codec)
	if err != nil {
		return fmt.Errorf("%s: %w", archivePath, err)
	}
	raw, err := codec.Decompress(data[HeaderSize:])
	if err != nil {
		return fmt.Errorf("decompress %s: %w", archivePath, err)
	}
	if uint64(len(raw)) != hdr.RawSize || hash.Sum64(raw) != hdr.Checksum {
		return fmt.Errorf("%w: %s", errs.ErrChecksum, archivePath)
	}

	return nil
}

func trimArchiveExt(path string) string {
	if len(path) > len(format.ArchiveExt) && path[len(path)-len(format.ArchiveExt):] == format.ArchiveExt {
		return path[:len(path)-len(format.ArchiveExt)]
	}

	return path + ".restored"
}
