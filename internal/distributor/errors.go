package distributor

import "errors"

var (
	// ErrInvalidArgument is returned for malformed configuration, slug
	// lengths below one, and slugs outside the slug alphabet.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists is returned when the target directory is already
	// present. The existing path is never modified.
	ErrAlreadyExists = errors.New("distribution already exists")

	// ErrFilesystem wraps OS failures while creating a directory or writing
	// its index page.
	ErrFilesystem = errors.New("filesystem error")
)
