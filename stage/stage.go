// Package stage builds the statements and paths used to upload files to a stage.
package stage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrStreamClosed = errors.New("stage: stream closed")
)

// StreamClosedError is returned when the stream being uploaded was closed before or during
// the upload.
type StreamClosedError struct {
	Filename string
}

func (sce *StreamClosedError) Error() string {
	return fmt.Sprintf("stage: stream closed while uploading %s", sce.Filename)
}

func (sce *StreamClosedError) Is(err error) bool {
	return err == ErrStreamClosed
}

// IsClosed returns true if err reports that a file or pipe was used after being closed.
func IsClosed(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

type PutOptions struct {
	Parallel          int
	AutoCompress      bool
	SourceCompression string
	Overwrite         bool
}

// DefaultPutOptions are the options used by PUT when none are given.
func DefaultPutOptions() PutOptions {
	return PutOptions{
		Parallel:          4,
		AutoCompress:      true,
		SourceCompression: "AUTO_DETECT",
	}
}

// NormalizeStageLocation trims location and makes sure that it starts with @.
func NormalizeStageLocation(location string) string {
	location = strings.TrimSpace(location)
	if strings.HasPrefix(location, "@") {
		return location
	}
	return "@" + location
}

// BuildTargetPath returns the path within stage at which files are placed; a non-empty
// prefix is joined to the stage with a single slash.
func BuildTargetPath(stage, prefix string) string {
	path := NormalizeStageLocation(stage)
	if prefix == "" {
		return path
	} else if strings.HasPrefix(prefix, "/") {
		return path + prefix
	}
	return path + "/" + prefix
}

func boolString(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// BuildPutStatement returns the PUT statement which uploads uri to prefix within stage.
func BuildPutStatement(uri, stage, prefix string, opts PutOptions) string {
	return fmt.Sprintf("PUT %s %s PARALLEL = %d AUTO_COMPRESS = %s SOURCE_COMPRESSION = %s "+
		"OVERWRITE = %s", uri, BuildTargetPath(stage, prefix), opts.Parallel,
		boolString(opts.AutoCompress), strings.ToUpper(opts.SourceCompression),
		boolString(opts.Overwrite))
}

// FileURI returns the uri used by PUT to refer to the local file at path.
func FileURI(path string) string {
	return "file://" + path
}

// StreamURI returns the uri used by PUT when the data comes from a stream rather than a
// local file.
func StreamURI(filename string) string {
	return "file:///tmp/placeholder/" + filename
}
