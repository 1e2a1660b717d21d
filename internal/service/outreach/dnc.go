package outreach

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DNCRegistry answers whether a phone number is on a do-not-call list. This
// is separate from the opt-out registry: DNC entries come from an external
// registry file, not from contact responses.
type DNCRegistry interface {
	Contains(phone string) bool
}

// FileDNCRegistry loads a newline-delimited list of numbers at startup.
// Lines starting with # are comments. Numbers are compared on digits only.
type FileDNCRegistry struct {
	numbers map[string]struct{}
}

// NewFileDNCRegistry reads the registry file. An empty path yields an empty
// registry rather than an error so the feature is opt-in.
func NewFileDNCRegistry(path string) (*FileDNCRegistry, error) {
	reg := &FileDNCRegistry{numbers: make(map[string]struct{})}
	if path == "" {
		return reg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening DNC registry: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if digits := normalizePhone(line); digits != "" {
			reg.numbers[digits] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading DNC registry: %w", err)
	}
	return reg, nil
}

func (r *FileDNCRegistry) Contains(phone string) bool {
	_, ok := r.numbers[normalizePhone(phone)]
	return ok
}

func (r *FileDNCRegistry) Len() int {
	return len(r.numbers)
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
