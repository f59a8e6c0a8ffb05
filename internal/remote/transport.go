// Package remote abstracts the file transfer mechanism between the build host
// and the package server. The production implementation shells out to the
// operator's ssh/scp binaries; tests use the in-memory mock.
package remote

import "context"

// Transport is the remote storage collaborator: list, transfer and delete
// files in one remote directory.
type Transport interface {
	// List returns the filenames currently present in the remote directory.
	// A missing directory is an empty listing, not an error.
	List(ctx context.Context, dir string) ([]string, error)

	// Upload copies local files into the remote directory, creating it if
	// needed.
	Upload(ctx context.Context, files []string, dir string) error

	// Download copies one remote file to a local path.
	Download(ctx context.Context, remotePath, localPath string) error

	// Remove deletes the named files from the remote directory. Names that do
	// not exist are ignored.
	Remove(ctx context.Context, dir string, names []string) error
}
