package content

import (
	"errors"
	"io"
	"os"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// errUndecodable marks a decode failure, as opposed to a terminal I/O error.
// The reader reacts by retrying the whole file with the next encoding.
var errUndecodable = errors.New("content cannot be decoded with this encoding")

func isUndecodable(candidateError error) bool {
	return errors.Is(candidateError, errUndecodable) || errors.Is(candidateError, unicode.ErrMissingBOM)
}

// candidateEncoding is one entry of the priority-ordered decode list.
type candidateEncoding struct {
	name string
	// decoder is nil for the native UTF-8 candidate, which uses a strict
	// chunked validator instead of a transformer.
	decoder func() *encoding.Decoder
}

// candidateEncodings returns the decode candidates in priority order. The
// platform-native UTF-8 comes first, then BOM-marked UTF-16, then the Latin
// fallbacks; Windows-only encodings are appended on that platform. Latin-1
// accepts every byte sequence, so it terminates the list as a catch-all.
func candidateEncodings() []candidateEncoding {
	candidates := []candidateEncoding{
		{name: "utf-8"},
		{name: "utf-16", decoder: unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder},
	}
	if runtime.GOOS == "windows" {
		candidates = append(candidates, candidateEncoding{name: "windows-1252", decoder: charmap.Windows1252.NewDecoder})
	}
	candidates = append(candidates, candidateEncoding{name: "latin-1", decoder: charmap.ISO8859_1.NewDecoder})
	return candidates
}

// decodesPrefix reports whether the sniff prefix decodes under this encoding.
// The prefix may cut a multi-byte sequence short, so a trailing incomplete
// rune is tolerated for UTF-8.
func (candidate candidateEncoding) decodesPrefix(prefix []byte) bool {
	if candidate.decoder == nil {
		boundary := completeRuneBoundary(prefix)
		return utf8.Valid(prefix[:boundary])
	}
	_, _, transformError := transform.Bytes(candidate.decoder(), prefix)
	return transformError == nil
}

// decodeStream decodes the whole file at path in readChunkSize chunks,
// returning errUndecodable (or a BOM error) when this encoding cannot
// represent the stream, and the underlying error on I/O failure.
func (candidate candidateEncoding) decodeStream(path string) (string, error) {
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return "", openError
	}
	defer fileHandle.Close()

	if candidate.decoder == nil {
		return readUTF8Strict(fileHandle)
	}

	var builder strings.Builder
	decodedReader := transform.NewReader(fileHandle, candidate.decoder())
	buffer := make([]byte, readChunkSize)
	for {
		bytesRead, readError := decodedReader.Read(buffer)
		if bytesRead > 0 {
			builder.Write(buffer[:bytesRead])
		}
		if readError == io.EOF {
			return builder.String(), nil
		}
		if readError != nil {
			return "", readError
		}
	}
}

// readUTF8Strict streams fileHandle and fails with errUndecodable on the
// first invalid or truncated UTF-8 sequence. Chunk boundaries may split a
// rune, so up to utf8.UTFMax trailing bytes are carried into the next chunk.
func readUTF8Strict(fileHandle *os.File) (string, error) {
	var builder strings.Builder
	pending := make([]byte, 0, utf8.UTFMax)
	buffer := make([]byte, readChunkSize)
	for {
		bytesRead, readError := fileHandle.Read(buffer)
		if bytesRead > 0 {
			data := append(pending, buffer[:bytesRead]...)
			boundary := completeRuneBoundary(data)
			if !utf8.Valid(data[:boundary]) {
				return "", errUndecodable
			}
			builder.Write(data[:boundary])
			pending = append(pending[:0], data[boundary:]...)
			if len(pending) >= utf8.UTFMax {
				return "", errUndecodable
			}
		}
		if readError == io.EOF {
			break
		}
		if readError != nil {
			return "", readError
		}
	}
	if len(pending) > 0 {
		return "", errUndecodable
	}
	return builder.String(), nil
}

// completeRuneBoundary returns the length of the longest prefix of data that
// does not end inside a multi-byte rune.
func completeRuneBoundary(data []byte) int {
	end := len(data)
	for index := end - 1; index >= 0 && end-index <= utf8.UTFMax; index-- {
		if utf8.RuneStart(data[index]) {
			if utf8.FullRune(data[index:end]) {
				return end
			}
			return index
		}
	}
	return end
}
