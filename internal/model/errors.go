package model

import "errors"

var (
	// ErrNotFound is returned when a record, archive or archive entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIsDirectory is returned when a file was requested but the archive path is a folder.
	ErrIsDirectory = errors.New("path is a directory")
	// ErrConflict is returned when a unique key such as a federated id is taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalidToken covers bad signatures, malformed tokens, expiry and purpose mismatch.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidArchiveID is returned for identifiers that are not of the <uuid>.zip form.
	ErrInvalidArchiveID = errors.New("invalid archive id")

	ErrRemoteLookupFailed = errors.New("remote lookup failed")
	ErrImportFailed       = errors.New("import failed")
	ErrExportFailed       = errors.New("export failed")
	ErrSSOFailed          = errors.New("sso login failed")

	// ErrStorageFatal signals that local archive storage is left inconsistent
	// with the submission records and needs operator attention.
	ErrStorageFatal = errors.New("archive storage inconsistent")
)
