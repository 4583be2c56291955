package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/text/encoding/unicode"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// ReadSource reads a file and decodes it as UTF-8. A leading BOM is dropped
// and invalid byte sequences become U+FFFD, so offsets computed on the
// returned text are stable for a given file.
func ReadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := cerrors.ErrCodeFileRead
		if errors.Is(err, fs.ErrPermission) {
			code = cerrors.ErrCodeFilePermission
		}
		return "", cerrors.New(code, fmt.Sprintf("failed to read %s", path), err)
	}
	return Decode(data)
}

// Decode converts raw bytes to text with lossy UTF-8 decoding.
func Decode(data []byte) (string, error) {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", cerrors.New(cerrors.ErrCodeFileRead, "failed to decode content", err)
	}
	return string(out), nil
}
