// Package sitemap discovers the crawlable pages of a site from robots.txt
// and XML sitemaps.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const maxDecompressedBytes = 50 << 20

// Entry is one <url> of a urlset
type Entry struct {
	Loc      string
	LastMod  string
	Priority float64
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc      string  `xml:"loc"`
		LastMod  string  `xml:"lastmod"`
		Priority float64 `xml:"priority"`
	} `xml:"url"`
}

// ParseSitemap parses a <sitemapindex> or <urlset> document, gzipped or not.
// An index yields child sitemap URLs, a urlset yields page entries.
func ParseSitemap(data []byte) (children []string, entries []Entry, err error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid gzip sitemap: %w", err)
		}
		defer zr.Close()

		data, err = io.ReadAll(io.LimitReader(zr, maxDecompressedBytes))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress sitemap: %w", err)
		}
	}

	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil {
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return children, nil, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, nil, fmt.Errorf("not a sitemap: %w", err)
	}
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			entries = append(entries, Entry{
				Loc:      loc,
				LastMod:  strings.TrimSpace(u.LastMod),
				Priority: u.Priority,
			})
		}
	}
	return nil, entries, nil
}
