package archive

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/journal-exchange/internal/mocks"
	"github.com/dtroode/journal-exchange/internal/model"
	"github.com/dtroode/journal-exchange/internal/storage/local"
	"github.com/dtroode/journal-exchange/internal/testutil"
)

const testMaxSize = 1 << 20

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := local.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewEngine(store, testMaxSize, testutil.MakeNoopLogger())
}

type zipEntry struct {
	name string
	data string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		_, err = fw.Write([]byte(e.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestEngine_RoundTripText(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	content := []byte("package main\n\nfunc main() {}\n")
	id, err := e.Compress(ctx, "main.go", content)
	require.NoError(t, err)
	require.NoError(t, ValidateID(id))

	got, err := e.ExtractFileAsText(ctx, id, "main.go")
	require.NoError(t, err)
	assert.Equal(t, model.EncodingText, got.Encoding)
	assert.Equal(t, "text/plain; charset=utf-8", got.MimeType)
	assert.Equal(t, string(content), got.Payload)
	assert.Equal(t, "Go", got.Language)
}

func TestEngine_RoundTripBinary(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.Compress(ctx, "logo.png", pngHeader)
	require.NoError(t, err)

	got, err := e.ExtractFileAsText(ctx, id, "/logo.png")
	require.NoError(t, err)
	assert.Equal(t, model.EncodingBase64, got.Encoding)
	assert.Equal(t, "image/png", got.MimeType)

	raw, err := base64.StdEncoding.DecodeString(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)
}

func TestEngine_ExtractCharsets(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		encoding model.PayloadEncoding
		text     string
	}{
		{name: "latin-1", content: []byte("caf\xe9 na\xefve\n"), encoding: model.EncodingBase64},
		{name: "utf-16le with bom", content: []byte("\xff\xfeh\x00i\x00"), encoding: model.EncodingText, text: "hi"},
		{name: "utf-16be with bom", content: []byte("\xfe\xff\x00h\x00i"), encoding: model.EncodingText, text: "hi"},
		{name: "utf-16le odd length", content: []byte("\xff\xfeh\x00i"), encoding: model.EncodingBase64},
		{name: "utf-8", content: []byte("caf\u00e9\n"), encoding: model.EncodingText, text: "caf\u00e9\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t)

			id, err := e.Compress(ctx, "notes.txt", tt.content)
			require.NoError(t, err)

			extracted, err := e.ExtractFileAsText(ctx, id, "notes.txt")
			require.NoError(t, err)

			// The payload travels as JSON.
			wire, err := json.Marshal(extracted)
			require.NoError(t, err)
			var got model.ExtractedFile
			require.NoError(t, json.Unmarshal(wire, &got))

			require.Equal(t, tt.encoding, got.Encoding)
			if tt.encoding == model.EncodingText {
				assert.Equal(t, tt.text, got.Payload)
				return
			}
			raw, err := base64.StdEncoding.DecodeString(got.Payload)
			require.NoError(t, err)
			assert.Equal(t, tt.content, raw)
		})
	}
}

func TestEngine_SingleFileListing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.Compress(ctx, "paper.tex", []byte(`\documentclass{article}`))
	require.NoError(t, err)

	entries, err := e.ListDirectory(ctx, id, RootPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "paper.tex", entries[0].Name)
	assert.False(t, entries[0].IsDirectory)
}

func TestEngine_CompressStoresZipAsIs(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	blob := buildZip(t, zipEntry{"README.md", "# hi\n"}, zipEntry{"src/main.go", "package main\n"})
	id, err := e.Compress(ctx, "upload.bin", blob)
	require.NoError(t, err)

	stored, err := e.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blob, stored)

	got, err := e.ExtractFileAsText(ctx, id, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", got.Payload)
}

func TestEngine_CompressNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	first, err := e.Compress(ctx, "a.txt", []byte("one"))
	require.NoError(t, err)
	second, err := e.Compress(ctx, "a.txt", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	got, err := e.ExtractFileAsText(ctx, first, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Payload)
}

func TestEngine_CompressUsesBaseName(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.Compress(ctx, `C:\Users\me\..\notes.txt`, []byte("notes"))
	require.NoError(t, err)

	entries, err := e.ListDirectory(ctx, id, RootPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name)

	_, err = e.Compress(ctx, "..", []byte("x"))
	assert.Error(t, err)
}

func TestEngine_ListDirectory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	blob := buildZip(t,
		zipEntry{"README.md", "# readme\n"},
		zipEntry{"docs/", ""},
		zipEntry{"src/main.go", "package main\n"},
		zipEntry{"src/lib/util.go", "package lib\n"},
		zipEntry{"assets/img/logo.png", string(pngHeader)},
	)
	id, err := e.Compress(ctx, "project.zip", blob)
	require.NoError(t, err)

	names := func(entries []model.DirectoryEntry) []string {
		out := make([]string, 0, len(entries))
		for _, en := range entries {
			out = append(out, en.Name)
		}
		return out
	}

	root, err := e.ListDirectory(ctx, id, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"assets", "docs", "src", "README.md"}, names(root))
	for _, en := range root[:3] {
		assert.True(t, en.IsDirectory, en.Name)
	}

	src, err := e.ListDirectory(ctx, id, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "main.go"}, names(src))

	// Implicit folders are listable and carry their contents' time.
	img, err := e.ListDirectory(ctx, id, "/assets/img/")
	require.NoError(t, err)
	assert.Equal(t, []string{"logo.png"}, names(img))
	assert.False(t, root[0].LastModified.IsZero())

	docs, err := e.ListDirectory(ctx, id, "docs")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_ListDirectoryNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	blob := buildZip(t, zipEntry{"src/main.go", "package main\n"})
	id, err := e.Compress(ctx, "p.zip", blob)
	require.NoError(t, err)

	for _, p := range []string{"missing", "src/main.go", "../src", `src\..`} {
		t.Run(p, func(t *testing.T) {
			_, err := e.ListDirectory(ctx, id, p)
			require.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestEngine_ExtractErrors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	blob := buildZip(t, zipEntry{"src/main.go", "package main\n"}, zipEntry{"docs/", ""})
	id, err := e.Compress(ctx, "p.zip", blob)
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "missing file", path: "src/other.go", want: model.ErrNotFound},
		{name: "implicit directory", path: "src", want: model.ErrIsDirectory},
		{name: "explicit directory", path: "docs/", want: model.ErrIsDirectory},
		{name: "root", path: "/", want: model.ErrIsDirectory},
		{name: "parent traversal", path: "../../etc/passwd", want: model.ErrNotFound},
		{name: "traversal inside archive", path: "src/../src/main.go", want: model.ErrNotFound},
		{name: "backslash", path: `src\main.go`, want: model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ExtractFileAsText(ctx, id, tt.path)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "/", want: "", ok: true},
		{in: "", want: "", ok: true},
		{in: "src/", want: "src", ok: true},
		{in: "/src//lib/./util.go", want: "src/lib/util.go", ok: true},
		{in: "../escape.txt", ok: false},
		{in: "src/../../x", ok: false},
		{in: `src\main.go`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := normalizePath(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.Compress(ctx, "a.txt", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, id))
	require.NoError(t, e.Delete(ctx, id))

	_, err = e.ListDirectory(ctx, id, "/")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestEngine_DeleteFailureSurfaces(t *testing.T) {
	storage := servermocks.NewStorage(t)
	e := NewEngine(storage, testMaxSize, testutil.MakeNoopLogger())

	id := "3f1c2b8e-7a4d-4c2b-9e1f-0a1b2c3d4e5f.zip"
	storage.On("Delete", mock.Anything, id).Return(errors.New("permission denied")).Once()

	err := e.Delete(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestEngine_InvalidArchiveID(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	for _, id := range []string{"", "x.zip", "../a.zip", "3F1C2B8E-7A4D-4C2B-9E1F-0A1B2C3D4E5F.zip", "3f1c2b8e-7a4d-4c2b-9e1f-0a1b2c3d4e5f"} {
		t.Run(id, func(t *testing.T) {
			_, err := e.ListDirectory(ctx, id, "/")
			require.ErrorIs(t, err, model.ErrInvalidArchiveID)
			require.ErrorIs(t, e.Delete(ctx, id), model.ErrInvalidArchiveID)
		})
	}
}

func TestEngine_SizeLimit(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewStore(t.TempDir())
	require.NoError(t, err)
	e := NewEngine(store, 256, testutil.MakeNoopLogger())

	// Compressible input fits once deflated but cannot be extracted.
	id, err := e.Compress(ctx, "big.txt", bytes.Repeat([]byte("a"), 4096))
	require.NoError(t, err)
	_, err = e.ExtractFileAsText(ctx, id, "big.txt")
	require.ErrorIs(t, err, ErrTooLarge)

	blob := buildZip(t,
		zipEntry{"a.txt", "aaaa"},
		zipEntry{"b.txt", "bbbb"},
		zipEntry{"c.txt", "cccc"},
		zipEntry{"d.txt", "dddd"},
	)
	_, err = e.Compress(ctx, "p.zip", blob)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestEngine_CompressFS(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	fsys := fstest.MapFS{
		"paper/main.tex":      {Data: []byte(`\begin{document}`)},
		"paper/figures/a.png": {Data: pngHeader},
		"README":              {Data: []byte("readme")},
	}
	id, err := e.CompressFS(ctx, fsys)
	require.NoError(t, err)

	root, err := e.ListDirectory(ctx, id, "/")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "paper", root[0].Name)
	assert.True(t, root[0].IsDirectory)

	fig, err := e.ExtractFileAsText(ctx, id, "paper/figures/a.png")
	require.NoError(t, err)
	assert.Equal(t, model.EncodingBase64, fig.Encoding)
}

func TestIsZip(t *testing.T) {
	assert.True(t, IsZip(buildZip(t, zipEntry{"a", "b"})))
	assert.False(t, IsZip([]byte("PK\x03\x04 not really a zip")))
	assert.False(t, IsZip([]byte("plain text")))
	assert.False(t, IsZip(nil))
}

func TestDigest(t *testing.T) {
	d := Digest([]byte("hello"))
	assert.Regexp(t, `^blake3:[0-9a-f]{64}$`, d)
	assert.Equal(t, d, Digest([]byte("hello")))
	assert.NotEqual(t, d, Digest([]byte("hello!")))

	ok, err := VerifyDigest([]byte("hello"), d)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = VerifyDigest([]byte("hello"), "sha256:abc")
	assert.Error(t, err)
}
