package fileindex

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/ognibuild/ognibuild"
)

// AptSource is one "deb" line of an apt sources.list, enough information
// to locate its Release/InRelease file and Contents-* indexes. Mirrors
// the fields contents_urls_from_sources_entry reads off an
// aptsources.sourceslist.SourceEntry.
type AptSource struct {
	BaseURL    string
	Dist       string
	Components []string
}

func (s AptSource) distsURL() string {
	base := strings.TrimRight(s.BaseURL, "/")
	if len(s.Components) > 0 {
		return base + "/dists"
	}
	return base
}

// Fetcher retrieves the raw bytes at url, returning os.ErrNotExist (or an
// error satisfying errors.Is against it) when the server reports the URL
// missing. ContentsURLs tries InRelease and falls back to Release when
// the first fetch fails for any reason.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// HTTPFetcher fetches url over plain HTTP(S) using http.DefaultClient,
// sending ognibuild's UserAgent exactly as load_direct_url does.
func HTTPFetcher(ctx context.Context, rawurl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ognibuild.UserAgent)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fileindex: %s: %w", rawurl, os.ErrNotExist)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fileindex: %s: unexpected status %s", rawurl, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

var checksumLineRe = regexp.MustCompile(`^[0-9a-f]+\s+[0-9]+\s+(\S+)$`)

// releaseFileNames extracts the file names listed in a Release/InRelease
// checksum section (MD5Sum/SHA1Sum/SHA256Sum are all the same set of
// names, so one pass over every line collects them all), keyed by the
// name with its compression suffix stripped -- the same key
// contents_urls_from_sources_entry builds via os.path.splitext.
func releaseFileNames(data []byte) map[string]string {
	names := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := checksumLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		base := name
		for _, ext := range []string{".xz", ".gz", ".lz4"} {
			if strings.HasSuffix(base, ext) {
				base = strings.TrimSuffix(base, ext)
				break
			}
		}
		names[base] = name
	}
	return names
}

func joinURL(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// ContentsURLs resolves the Contents-<arch> URLs this source publishes
// for the given architectures, honoring whichever of InRelease/Release
// can be fetched and listing only the ones it names. Mirrors
// contents_urls_from_sources_entry.
func ContentsURLs(ctx context.Context, fetch Fetcher, src AptSource, arches []string) ([]string, error) {
	dists := src.distsURL()
	name := strings.TrimRight(src.Dist, "/")

	var release []byte
	var err error
	for _, fn := range []string{"InRelease", "Release"} {
		release, err = fetch(ctx, joinURL(dists, name, fn))
		if err == nil {
			break
		}
	}
	if release == nil {
		return nil, fmt.Errorf("fileindex: unable to fetch Release or InRelease for %s: %w", joinURL(dists, name), err)
	}

	existing := releaseFileNames(release)

	wanted := map[string]bool{}
	if len(src.Components) > 0 {
		for _, comp := range src.Components {
			for _, arch := range arches {
				wanted[fmt.Sprintf("%s/Contents-%s", comp, arch)] = true
			}
		}
	} else {
		for _, arch := range arches {
			wanted[fmt.Sprintf("Contents-%s", arch)] = true
		}
	}

	var urls []string
	for want := range wanted {
		if actual, ok := existing[want]; ok {
			urls = append(urls, joinURL(dists, name, actual))
		}
	}
	return urls, nil
}

func decompress(name string, data []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case strings.HasSuffix(name, ".xz"):
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(r)
	default:
		return data, nil
	}
}

// ContentsIndex is a FileIndex backed by downloaded and cached
// Contents-* files, indexed in memory as path->package. Grounded on
// RemoteContentsFileSearcher.
type ContentsIndex struct {
	db       map[string]string
	cacheDir string
}

// NewContentsIndex returns an empty index that caches downloaded
// Contents files under cacheDir (created lazily on first Load, if
// non-empty).
func NewContentsIndex(cacheDir string) *ContentsIndex {
	return &ContentsIndex{db: map[string]string{}, cacheDir: cacheDir}
}

func cacheFileName(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return strings.ReplaceAll(rawurl, "/", "_")
	}
	return strings.ReplaceAll(strings.TrimPrefix(u.Path, "/"), "/", "_")
}

func (c *ContentsIndex) fetchCached(ctx context.Context, fetch Fetcher, rawurl string) ([]byte, error) {
	if c.cacheDir == "" {
		return fetch(ctx, rawurl)
	}
	cachePath := filepath.Join(c.cacheDir, cacheFileName(rawurl))
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}
	data, err := fetch(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.cacheDir, 0755); err == nil {
		// Best-effort: a cache write failure should not fail the load,
		// only the speed of the next one.
		_ = renameio.WriteFile(cachePath, data, 0644)
	}
	return data, nil
}

// Load downloads (or serves from cache) the Contents files for every
// source and merges them into the index.
func (c *ContentsIndex) Load(ctx context.Context, fetch Fetcher, sources []AptSource, arches []string) error {
	for _, src := range sources {
		urls, err := ContentsURLs(ctx, fetch, src, arches)
		if err != nil {
			return err
		}
		for _, u := range urls {
			raw, err := c.fetchCached(ctx, fetch, u)
			if err != nil {
				return fmt.Errorf("fileindex: fetching %s: %w", u, err)
			}
			data, err := decompress(u, raw)
			if err != nil {
				return fmt.Errorf("fileindex: decompressing %s: %w", u, err)
			}
			c.loadContents(data)
		}
	}
	return nil
}

// loadContents parses a decompressed Contents file ("path  section/pkg"
// per line, rightmost whitespace-separated field is the package list) and
// merges it into the index, keeping only the last (most specific)
// package for a given path -- read_contents_file/self[path]=rest.
func (c *ContentsIndex) loadContents(data []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.LastIndexAny(line, " \t")
		if idx < 0 {
			continue
		}
		path := strings.TrimSpace(line[:idx])
		rest := strings.TrimSpace(line[idx+1:])
		pkg := rest
		if slash := strings.LastIndexByte(rest, '/'); slash >= 0 {
			pkg = rest[slash+1:]
		}
		c.db["/"+strings.TrimPrefix(path, "/")] = pkg
	}
}

func (c *ContentsIndex) SearchFiles(_ context.Context, path string, regex, caseInsensitive bool) ([]string, error) {
	if !regex && !caseInsensitive {
		if pkg, ok := c.db[path]; ok {
			return []string{pkg}, nil
		}
		return nil, nil
	}

	pattern := path
	if caseInsensitive && !regex {
		pattern = regexp.QuoteMeta(path)
	}
	flags := ""
	if caseInsensitive {
		flags = "(?i)"
	}
	re, err := regexp.Compile(flags + pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for p, pkg := range c.db {
		if re.MatchString(p) {
			out = append(out, pkg)
		}
	}
	return out, nil
}
