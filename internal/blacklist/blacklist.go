// Package blacklist implements the host-fragment substring matcher used to
// decide which CONNECT payloads get fragmented.
package blacklist

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	ahocorasick "github.com/BobuSumisu/aho-corasick"

	"dpiproxy/internal/proxyerr"
)

// Blacklist is an immutable set of byte-literal host-name fragments.
// Matching is a contiguous-substring test with no case folding or encoding
// normalization.
type Blacklist struct {
	patterns [][]byte
	trie     *ahocorasick.Trie
}

// Load reads a newline-delimited list of patterns from path. Each line is
// stripped of trailing whitespace and kept as raw bytes. A missing or
// unreadable file is fatal: it returns an error wrapping proxyerr.ErrConfig.
func Load(path string) (*Blacklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: blacklist file %q: %v", proxyerr.ErrConfig, path, err)
	}
	defer f.Close()

	var patterns [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), " \t\r\n")
		if len(line) == 0 {
			// Blank lines are a loader bug upstream (they'd match
			// everywhere); skip them rather than propagate the bug.
			continue
		}
		patterns = append(patterns, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading blacklist file %q: %v", proxyerr.ErrConfig, path, err)
	}

	return New(patterns), nil
}

// New builds a Blacklist from an in-memory pattern list (used directly by
// tests; production startup always goes through Load).
func New(patterns [][]byte) *Blacklist {
	bl := &Blacklist{patterns: patterns}
	if len(patterns) == 0 {
		return bl
	}

	strs := make([]string, len(patterns))
	for i, p := range patterns {
		strs[i] = string(p)
	}
	bl.trie = ahocorasick.NewTrieBuilder().AddStrings(strs).Build()
	return bl
}

// ContainsAny reports whether any loaded pattern occurs as a contiguous
// substring of buf. An empty blacklist always returns false.
func (b *Blacklist) ContainsAny(buf []byte) bool {
	if b == nil || b.trie == nil {
		return false
	}
	return b.trie.MatchFirst(buf) != nil
}

// Len returns the number of loaded patterns (for startup logging).
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.patterns)
}
