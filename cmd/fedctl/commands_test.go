package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/journal-exchange/internal/archive"
	"github.com/dtroode/journal-exchange/internal/model"
	"github.com/dtroode/journal-exchange/internal/service"
	"github.com/dtroode/journal-exchange/internal/storage/local"
	"github.com/dtroode/journal-exchange/internal/testutil"
	"github.com/dtroode/journal-exchange/internal/token"
)

type recordingExporter struct {
	submissionID, remote string
}

func (r *recordingExporter) ExportSubmission(_ context.Context, submissionID, remoteURL string) error {
	r.submissionID, r.remote = submissionID, remoteURL
	return nil
}

func newCommands(t *testing.T, opts options) (*commands, *bytes.Buffer, *service.TokenService, *recordingExporter) {
	t.Helper()
	store, err := local.NewStore(t.TempDir())
	require.NoError(t, err)

	tokens := service.NewTokenService(token.NewJWT("secret"), testutil.MakeNoopLogger())
	exp := &recordingExporter{}
	out := &bytes.Buffer{}
	return &commands{
		archives: archive.NewEngine(store, 1<<20, testutil.MakeNoopLogger()),
		tokens:   tokens,
		exporter: exp,
		out:      out,
		opts:     opts,
	}, out, tokens, exp
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# paper\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main\n"), 0o600))
	return dir
}

func packedID(t *testing.T, out *bytes.Buffer) string {
	t.Helper()
	id, _, ok := strings.Cut(strings.TrimSpace(out.String()), "\t")
	require.True(t, ok, out.String())
	out.Reset()
	return id
}

func TestCommands_PackListCat(t *testing.T) {
	ctx := context.Background()
	c, out, _, _ := newCommands(t, options{})

	require.NoError(t, c.dispatch(ctx, []string{"pack", writeTree(t)}))
	id := packedID(t, out)
	require.NoError(t, archive.ValidateID(id))

	require.NoError(t, c.dispatch(ctx, []string{"ls", id}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "src/"))
	assert.True(t, strings.HasSuffix(lines[1], "README.md"))
	out.Reset()

	require.NoError(t, c.dispatch(ctx, []string{"cat", id, "src/main.go"}))
	assert.Equal(t, "package main\n", out.String())
	out.Reset()

	err := c.dispatch(ctx, []string{"cat", id, "src"})
	require.ErrorIs(t, err, model.ErrIsDirectory)

	require.NoError(t, c.dispatch(ctx, []string{"rm", id}))
	err = c.dispatch(ctx, []string{"ls", id})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCommands_PackSingleFileJSON(t *testing.T) {
	ctx := context.Background()
	c, out, _, _ := newCommands(t, options{json: true})

	file := filepath.Join(t.TempDir(), "figure.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.WriteFile(file, png, 0o600))

	require.NoError(t, c.dispatch(ctx, []string{"pack", file}))
	var res packResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	out.Reset()

	data, err := c.archives.Open(ctx, res.ArchiveID)
	require.NoError(t, err)
	assert.Equal(t, archive.Digest(data), res.Digest)

	require.NoError(t, c.dispatch(ctx, []string{"ls", res.ArchiveID}))
	var entries []model.DirectoryEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "figure.png", entries[0].Name)
	out.Reset()

	// raw mode decodes binary payloads
	c.opts.json = false
	require.NoError(t, c.dispatch(ctx, []string{"cat", res.ArchiveID, "figure.png"}))
	assert.Equal(t, png, out.Bytes())
}

func TestCommands_TokenAndExport(t *testing.T) {
	ctx := context.Background()
	c, out, tokens, exp := newCommands(t, options{})
	const id = "0b6a9d57-31a4-4ef0-9bde-3c4b1d7f0a11"

	require.NoError(t, c.dispatch(ctx, []string{"token", "export", strings.ToUpper(id)}))
	claims, err := tokens.VerifyExportAuthorization(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, id, claims.SubmissionID)

	require.Error(t, c.dispatch(ctx, []string{"token", "export", "not-a-uuid"}))

	require.NoError(t, c.dispatch(ctx, []string{"export", id, "https://remote.example"}))
	assert.Equal(t, id, exp.submissionID)
	assert.Equal(t, "https://remote.example", exp.remote)
}

func TestCommands_Usage(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newCommands(t, options{})

	for _, args := range [][]string{
		{"ls"},
		{"cat", "x.zip"},
		{"pack"},
		{"rm"},
		{"token", "refresh", "x"},
		{"export", "x"},
		{"frobnicate"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			assert.Error(t, c.dispatch(ctx, args))
		})
	}
}

func TestRun_UsesEnvironment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_DIR", t.TempDir())
	t.Setenv("DATABASE_DSN", "")

	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o600))

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"pack", file}, &stdout, &stderr))
	id := packedID(t, &stdout)

	require.NoError(t, run(context.Background(), []string{"cat", id, "notes.txt"}, &stdout, &stderr))
	assert.Equal(t, "hello", stdout.String())

	err := run(context.Background(), nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "usage: fedctl")
}
