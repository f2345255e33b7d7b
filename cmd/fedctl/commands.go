package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/journal-exchange/internal/archive"
	"github.com/dtroode/journal-exchange/internal/model"
)

type options struct {
	json    bool
	verbose bool
}

type archiveEngine interface {
	model.ArchiveEngine
	CompressFS(ctx context.Context, fsys fs.FS) (string, error)
}

type exportIssuer interface {
	IssueExportAuthorization(submissionID string) (string, error)
}

type exporter interface {
	ExportSubmission(ctx context.Context, submissionID, remoteURL string) error
}

type commands struct {
	archives archiveEngine
	tokens   exportIssuer
	exporter exporter
	out      io.Writer
	opts     options
}

func (c *commands) dispatch(ctx context.Context, args []string) error {
	name, args := args[0], args[1:]

	switch name {
	case "ls":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: ls <archive-id> [path]")
		}
		dir := archive.RootPath
		if len(args) == 2 {
			dir = args[1]
		}
		return c.list(ctx, args[0], dir)
	case "cat":
		if len(args) != 2 {
			return errors.New("usage: cat <archive-id> <path>")
		}
		return c.cat(ctx, args[0], args[1])
	case "pack":
		if len(args) != 1 {
			return errors.New("usage: pack <file-or-directory>")
		}
		return c.pack(ctx, args[0])
	case "rm":
		if len(args) != 1 {
			return errors.New("usage: rm <archive-id>")
		}
		return c.archives.Delete(ctx, args[0])
	case "token":
		if len(args) != 2 || args[0] != "export" {
			return errors.New("usage: token export <submission-id>")
		}
		return c.exportToken(args[1])
	case "export":
		if len(args) != 2 {
			return errors.New("usage: export <submission-id> <remote-url>")
		}
		return c.exporter.ExportSubmission(ctx, args[0], args[1])
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *commands) list(ctx context.Context, archiveID, dir string) error {
	entries, err := c.archives.ListDirectory(ctx, archiveID, dir)
	if err != nil {
		return err
	}
	if c.opts.json {
		return c.writeJSON(entries)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		name := e.Name
		if e.IsDirectory {
			name += "/"
		}
		fmt.Fprintf(tw, "%s\t%s\n", e.LastModified.UTC().Format(time.DateTime), name)
	}
	return tw.Flush()
}

func (c *commands) cat(ctx context.Context, archiveID, file string) error {
	extracted, err := c.archives.ExtractFileAsText(ctx, archiveID, file)
	if err != nil {
		return err
	}
	if c.opts.json {
		return c.writeJSON(extracted)
	}

	if extracted.Encoding == model.EncodingBase64 {
		raw, err := base64.StdEncoding.DecodeString(extracted.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}
		_, err = c.out.Write(raw)
		return err
	}
	_, err = io.WriteString(c.out, extracted.Payload)
	return err
}

type packResult struct {
	ArchiveID string `json:"archiveId"`
	Digest    string `json:"digest"`
}

func (c *commands) pack(ctx context.Context, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	var archiveID string
	if info.IsDir() {
		archiveID, err = c.archives.CompressFS(ctx, os.DirFS(src))
	} else {
		var content []byte
		content, err = os.ReadFile(src)
		if err != nil {
			return err
		}
		archiveID, err = c.archives.Compress(ctx, filepath.Base(src), content)
	}
	if err != nil {
		return err
	}

	data, err := c.archives.Open(ctx, archiveID)
	if err != nil {
		return err
	}
	res := packResult{ArchiveID: archiveID, Digest: archive.Digest(data)}

	if c.opts.json {
		return c.writeJSON(res)
	}
	_, err = fmt.Fprintf(c.out, "%s\t%s\n", res.ArchiveID, res.Digest)
	return err
}

func (c *commands) exportToken(submissionID string) error {
	id, err := uuid.Parse(submissionID)
	if err != nil {
		return fmt.Errorf("invalid submission id %q: %w", submissionID, err)
	}
	token, err := c.tokens.IssueExportAuthorization(id.String())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, token)
	return err
}

func (c *commands) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
