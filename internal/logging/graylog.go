package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter opens a GELF UDP writer to addr. Each Write becomes one
// GELF message.
func NewGraylogWriter(addr string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open graylog writer: %w", err)
	}
	return w, nil
}
