package session

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/xerrors"
)

// tarballExcludeFiles lists device nodes a base-root tarball may carry that
// we skip recreating, matching the original session/unshare.py's
// TARBALL_EXCLUDE_FILES (unprivileged extraction cannot mknod these anyway).
var tarballExcludeFiles = map[string]bool{
	"dev/urandom": true,
	"dev/random":  true,
	"dev/full":    true,
	"dev/null":    true,
	"dev/console": true,
	"dev/zero":    true,
	"dev/tty":     true,
	"dev/ptmx":    true,
}

// extractTarStream extracts a (possibly gzip-compressed) tar stream into
// dest, skipping device/character special files entirely -- unprivileged
// unshare namespaces cannot create them and the original/in-guest base
// roots recreate them via udev or /dev bind-mounts regardless.
func extractTarStream(r io.Reader, dest string) error {
	peek := make([]byte, 2)
	br := &peekReader{r: r}
	if _, err := io.ReadFull(br, peek); err != nil && err != io.EOF {
		return err
	}
	br.unread(peek)
	var tr *tar.Reader
	if len(peek) == 2 && peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return xerrors.Errorf("opening gzip tarball: %w", err)
		}
		defer gz.Close()
		tr = tar.NewReader(gz)
	} else {
		tr = tar.NewReader(br)
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("reading tar entry: %w", err)
		}
		target := filepath.Join(dest, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		case tar.TypeSymlink:
			os.Symlink(hdr.Linkname, target)
		case tar.TypeChar, tar.TypeBlock:
			if !tarballExcludeFiles[hdr.Name] {
				continue
			}
		}
	}
}

type peekReader struct {
	r    io.Reader
	back []byte
}

func (p *peekReader) Read(b []byte) (int, error) {
	if len(p.back) > 0 {
		n := copy(b, p.back)
		p.back = p.back[n:]
		return n, nil
	}
	return p.r.Read(b)
}

func (p *peekReader) unread(b []byte) { p.back = append(p.back, b...) }
