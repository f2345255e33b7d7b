package model

import (
	"context"
	"io"
	"time"
)

// Storage is a flat blob store addressed by key. Delete of a missing key succeeds.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DirectoryEntry is one direct child of a folder inside an archive.
type DirectoryEntry struct {
	Name         string    `json:"name"`
	IsDirectory  bool      `json:"isDirectory"`
	LastModified time.Time `json:"lastModified"`
}

// PayloadEncoding tells how ExtractedFile.Payload must be decoded.
type PayloadEncoding string

const (
	EncodingText   PayloadEncoding = "text"
	EncodingBase64 PayloadEncoding = "base64"
)

// ExtractedFile is a file read out of an archive.
type ExtractedFile struct {
	MimeType string          `json:"mimeType"`
	Payload  string          `json:"payload"`
	Encoding PayloadEncoding `json:"encoding"`
	// Language is a syntax highlighting hint for text payloads.
	Language string `json:"language,omitempty"`
}

// ArchiveEngine stores submission archives and reads entries out of them.
type ArchiveEngine interface {
	Compress(ctx context.Context, originalName string, content []byte) (string, error)
	Open(ctx context.Context, archiveID string) ([]byte, error)
	Delete(ctx context.Context, archiveID string) error
	ExtractFileAsText(ctx context.Context, archiveID, path string) (ExtractedFile, error)
	ListDirectory(ctx context.Context, archiveID, path string) ([]DirectoryEntry, error)
}
