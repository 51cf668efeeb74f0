package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reader handles reading token lists from files or stdin.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadCodesFromFile reads tokens line by line from a wordlist file.
// Blank lines and '#'-prefixed comment lines are ignored; tokens are
// upper-cased.
func (r *Reader) ReadCodesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist file %s: %w", filePath, err)
	}
	defer file.Close()
	return r.readCodes(file)
}

// ReadCodesFromStdin reads tokens line by line from standard input.
func (r *Reader) ReadCodesFromStdin() ([]string, error) {
	return r.readCodes(os.Stdin)
}

func (r *Reader) readCodes(src io.Reader) ([]string, error) {
	var codes []string
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, strings.ToUpper(line))
	}
	return codes, scanner.Err()
}

// NewFileSource loads a wordlist file into a Source.
func NewFileSource(filePath string) (*SliceSource, error) {
	codes, err := NewReader().ReadCodesFromFile(filePath)
	if err != nil {
		return nil, err
	}
	return NewSliceSource(codes, OriginWordlist), nil
}

// WriteWordlist saves codes to a '#'-commented wordlist file.
func WriteWordlist(filePath string, codes []string, comment string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create wordlist file %s: %w", filePath, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if comment != "" {
		fmt.Fprintf(w, "# %s\n", comment)
	}
	fmt.Fprintf(w, "# %d patterns, one per line\n\n", len(codes))
	for _, code := range codes {
		fmt.Fprintln(w, code)
	}
	return w.Flush()
}
