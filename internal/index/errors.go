package index

import "errors"

var (
	// ErrNoImages is returned by Build when no file name yields a label.
	ErrNoImages = errors.New("no valid images found to build the index")

	// ErrEmptyIndex is returned by Read for a zero-byte CSV file.
	ErrEmptyIndex = errors.New("index file is empty")

	// ErrIndexMissing is returned by Read when the CSV file does not exist.
	ErrIndexMissing = errors.New("index file not found")

	// ErrBadHeader is returned when a CSV lacks a required column.
	ErrBadHeader = errors.New("index header missing required column")
)
