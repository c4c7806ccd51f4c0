package trkmod

import "fmt"

// Load dispatches to the decoder for ext (a lowercase file extension
// including the leading dot, e.g. ".s3m").
func Load(ext string, src Source) (*Module, error) {
	switch ext {
	case ".stm":
		return LoadSTM(src)
	case ".s3m":
		return LoadS3M(src)
	case ".it":
		return LoadIT(src)
	default:
		return nil, fmt.Errorf("%w: unrecognized extension %q", ErrUnsupportedVariant, ext)
	}
}
