package artwork

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Options configures artwork interpretation.
type Options struct {
	// Logger receives interpreter warnings (duplicate tool definitions,
	// ignored commands). Nil stays silent.
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by
// defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// Parser interprets one input file format into an Artwork.
type Parser interface {
	// Parse interprets data read from the named source.
	Parse(source string, data []byte, opts Options) (*Artwork, error)
	// Supports reports whether this parser handles the given filename.
	Supports(filename string) bool
	// Format returns the format identifier (e.g., "gerber", "excellon").
	Format() string
}

// Detect finds a parser that supports the given file path.
// Returns an error if no parser matches.
func Detect(path string, parsers ...Parser) (Parser, error) {
	name := filepath.Base(path)
	for _, p := range parsers {
		if p.Supports(name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unsupported artwork format: %s", name)
}
