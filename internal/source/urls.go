// Package source reads the document URL list and downloads the documents it names.
package source

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

// ReadURLs returns the non-blank, non-comment lines of the file at path,
// trimmed and in file order. A missing file yields no URLs and no error.
func ReadURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
