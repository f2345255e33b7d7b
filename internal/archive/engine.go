package archive

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/unicode"

	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

const (
	idSuffix = ".zip"

	// ContentType is the media type of stored archives.
	ContentType = "application/zip"
	// RootPath lists the top level of an archive.
	RootPath    = "/"
)

// ErrTooLarge is returned when an archive or entry exceeds the configured size limit.
var ErrTooLarge = errors.New("archive exceeds size limit")

// Engine packages uploads into zip archives and reads files and folders back
// out of them. Archives live in a model.Storage under <uuid>.zip keys.
type Engine struct {
	storage model.Storage
	maxSize int64
	logger  *logger.Logger
	now     func() time.Time
}

// NewEngine creates an Engine. maxSize bounds archive and entry reads.
func NewEngine(storage model.Storage, maxSize int64, logger *logger.Logger) *Engine {
	return &Engine{storage: storage, maxSize: maxSize, logger: logger, now: time.Now}
}

// ValidateID checks that id has the <uuid>.zip form produced by Compress.
func ValidateID(id string) error {
	raw, ok := strings.CutSuffix(id, idSuffix)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrInvalidArchiveID, id)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil || parsed.String() != raw {
		return fmt.Errorf("%w: %q", model.ErrInvalidArchiveID, id)
	}
	return nil
}

// Compress stores content as a new archive and returns its id. Content that
// already is a zip archive is stored as-is; anything else is wrapped in a new
// archive holding a single entry named after originalName.
func (e *Engine) Compress(ctx context.Context, originalName string, content []byte) (string, error) {
	blob := content
	if !IsZip(content) {
		name, err := entryName(originalName)
		if err != nil {
			return "", err
		}
		blob, err = e.pack(map[string][]byte{name: content})
		if err != nil {
			return "", fmt.Errorf("failed to build archive: %w", err)
		}
	}
	return e.store(ctx, blob)
}

// CompressFS packs every regular file and directory of fsys into a new archive.
func (e *Engine) CompressFS(ctx context.Context, fsys fs.FS) (string, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			_, err := w.CreateHeader(&zip.FileHeader{Name: p + "/", Modified: info.ModTime()})
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: p, Method: zip.Deflate, Modified: info.ModTime()})
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to pack directory: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}

	return e.store(ctx, buf.Bytes())
}

// ExtractFileAsText reads one file of an archive. Text content (sniffed
// text/* that decodes to valid UTF-8) is returned as a string; anything else
// is base64 encoded.
func (e *Engine) ExtractFileAsText(ctx context.Context, archiveID, pathInArchive string) (model.ExtractedFile, error) {
	toc, err := e.tableOfContents(ctx, archiveID)
	if err != nil {
		return model.ExtractedFile{}, err
	}

	name, ok := normalizePath(pathInArchive)
	if !ok {
		return model.ExtractedFile{}, fmt.Errorf("%s: %w", pathInArchive, model.ErrNotFound)
	}
	if name == "" || toc.isDir(name) {
		return model.ExtractedFile{}, fmt.Errorf("%s: %w", pathInArchive, model.ErrIsDirectory)
	}
	f, ok := toc.files[name]
	if !ok {
		return model.ExtractedFile{}, fmt.Errorf("%s: %w", pathInArchive, model.ErrNotFound)
	}

	data, err := e.readEntry(f)
	if err != nil {
		return model.ExtractedFile{}, err
	}

	mime := http.DetectContentType(data)
	if text, ok := decodeText(mime, data); ok {
		return model.ExtractedFile{
			MimeType: mime,
			Payload:  text,
			Encoding: model.EncodingText,
			Language: languageFor(name),
		}, nil
	}

	return model.ExtractedFile{
		MimeType: mime,
		Payload:  base64.StdEncoding.EncodeToString(data),
		Encoding: model.EncodingBase64,
	}, nil
}

// decodeText returns data as UTF-8 text when mime is a text type. UTF-16
// content is transcoded. Bytes that are not valid in their charset are left
// to base64 so they survive a JSON round trip.
func decodeText(mime string, data []byte) (string, bool) {
	if !strings.HasPrefix(mime, "text/") {
		return "", false
	}

	var endian unicode.Endianness
	switch {
	case strings.HasSuffix(mime, "charset=utf-16le"):
		endian = unicode.LittleEndian
	case strings.HasSuffix(mime, "charset=utf-16be"):
		endian = unicode.BigEndian
	default:
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}

	if len(data)%2 != 0 {
		return "", false
	}
	decoded, err := unicode.UTF16(endian, unicode.UseBOM).NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(decoded) || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}

// ListDirectory returns the direct children of a folder of the archive.
// RootPath (or "") lists the top level.
func (e *Engine) ListDirectory(ctx context.Context, archiveID, pathInArchive string) ([]model.DirectoryEntry, error) {
	toc, err := e.tableOfContents(ctx, archiveID)
	if err != nil {
		return nil, err
	}

	dir, ok := normalizePath(pathInArchive)
	if !ok || (dir != "" && !toc.isDir(dir)) {
		return nil, fmt.Errorf("%s: %w", pathInArchive, model.ErrNotFound)
	}

	entries := make([]model.DirectoryEntry, 0)
	for name, f := range toc.files {
		if parentOf(name) == dir {
			entries = append(entries, model.DirectoryEntry{Name: path.Base(name), LastModified: f.Modified})
		}
	}
	for name, modified := range toc.dirs {
		if parentOf(name) == dir {
			entries = append(entries, model.DirectoryEntry{Name: path.Base(name), IsDirectory: true, LastModified: modified})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// Open returns the raw bytes of an archive.
func (e *Engine) Open(ctx context.Context, archiveID string) ([]byte, error) {
	if err := ValidateID(archiveID); err != nil {
		return nil, err
	}

	rc, err := e.storage.Download(ctx, archiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archiveID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, e.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", archiveID, err)
	}
	if int64(len(data)) > e.maxSize {
		return nil, fmt.Errorf("archive %s: %w", archiveID, ErrTooLarge)
	}

	return data, nil
}

// Delete removes an archive. Deleting a missing archive succeeds; any other
// failure is an I/O error the caller must not ignore.
func (e *Engine) Delete(ctx context.Context, archiveID string) error {
	if err := ValidateID(archiveID); err != nil {
		return err
	}
	if err := e.storage.Delete(ctx, archiveID); err != nil {
		return fmt.Errorf("failed to delete archive %s: %w", archiveID, err)
	}
	return nil
}

// IsZip reports whether content sniffs as a zip archive and parses as one.
func IsZip(content []byte) bool {
	if http.DetectContentType(content) != ContentType {
		return false
	}
	_, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	return err == nil
}

func (e *Engine) store(ctx context.Context, blob []byte) (string, error) {
	if int64(len(blob)) > e.maxSize {
		return "", ErrTooLarge
	}

	id := uuid.NewString() + idSuffix
	if err := e.storage.Upload(ctx, id, bytes.NewReader(blob)); err != nil {
		return "", fmt.Errorf("failed to store archive: %w", err)
	}

	e.logger.Debug("Archive engine: archive stored",
		"archive_id", id,
		"bytes", len(blob))

	return id, nil
}

func (e *Engine) pack(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: e.now()})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) tableOfContents(ctx context.Context, archiveID string) (*toc, error) {
	data, err := e.Open(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive %s is corrupt: %w", archiveID, err)
	}
	return newTOC(r), nil
}

func (e *Engine) readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(e.maxSize) {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, e.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if int64(len(data)) > e.maxSize {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
	}
	return data, nil
}

// entryName turns an uploaded file name into a single archive entry name.
func entryName(originalName string) (string, error) {
	name := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid file name %q", originalName)
	}
	return name, nil
}
