package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Message is raw interchange text plus where it came from (a file path or
// "tcp://<remote>").
type Message struct {
	Source string
	Text   string
}

// ReadFile loads a message from disk. A missing file is reported as
// ErrInputNotFound.
func ReadFile(path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Message{}, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return Message{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Message{Source: path, Text: string(data)}, nil
}
