package report

import (
	"os"
	"strings"

	"github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
)

const sourceCacheSize = 128

// sourceUnavailable is shown in place of line contents when the source file
// cannot be read at report time.
const sourceUnavailable = "<source unavailable>"

type sourceFile struct {
	lines []string
	ok    bool
}

func hashString(s string) uint32 {
	return uint32(xxh3.HashString(s))
}

// sourceCache memoizes the line contents of source units referenced by a
// report. A file that has moved or been deleted since instrumentation is
// cached as unavailable rather than retried per line.
type sourceCache struct {
	lru *freelru.LRU[string, sourceFile]
}

func newSourceCache() *sourceCache {
	lru, err := freelru.New[string, sourceFile](sourceCacheSize, hashString)
	if err != nil {
		panic(err)
	}

	return &sourceCache{lru: lru}
}

// lineText returns the text of the numbered line in unit, or a placeholder
// when the source is unavailable.
func (c *sourceCache) lineText(unit string, line int) string {
	sf, ok := c.lru.Get(unit)
	if !ok {
		sf = c.load(unit)
		c.lru.Add(unit, sf)
	}

	if !sf.ok || line < 1 || line > len(sf.lines) {
		return sourceUnavailable
	}

	return strings.TrimRight(sf.lines[line-1], "\r\n")
}

func (c *sourceCache) load(unit string) sourceFile {
	data, err := os.ReadFile(unit)
	if err != nil {
		return sourceFile{}
	}

	return sourceFile{
		lines: strings.Split(string(data), "\n"),
		ok:    true,
	}
}
