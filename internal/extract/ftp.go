package extract

import (
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPInbox pulls PDF reports from a remote FTP drop into the local report
// directory before extraction. Files already present locally (by name) are
// left alone; content changes are caught downstream by the content hash.
type FTPInbox struct {
	rawURL   string
	user     string
	password string
	timeout  time.Duration
}

// NewFTPInbox creates an FTPInbox for the given ftp:// URL. Credentials
// default to anonymous when empty.
func NewFTPInbox(rawURL, user, password string) *FTPInbox {
	if user == "" {
		user = "anonymous"
		password = "anonymous"
	}
	return &FTPInbox{rawURL: rawURL, user: user, password: password, timeout: 30 * time.Second}
}

// Pull downloads new PDFs from the inbox into destDir and returns how many
// files were fetched. Individual file failures are logged and skipped.
func (f *FTPInbox) Pull(destDir string) (int, error) {
	host, dir, err := parseFTPURL(f.rawURL)
	if err != nil {
		return 0, err
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.timeout))
	if err != nil {
		return 0, eris.Wrapf(err, "extract: ftp dial %s", host)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(f.user, f.password); err != nil {
		return 0, eris.Wrap(err, "extract: ftp login")
	}

	entries, err := conn.List(dir)
	if err != nil {
		return 0, eris.Wrapf(err, "extract: ftp list %s", dir)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, eris.Wrap(err, "extract: create report dir")
	}

	fetched := 0
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile || !strings.EqualFold(filepath.Ext(entry.Name), ".pdf") {
			continue
		}
		local := filepath.Join(destDir, entry.Name)
		if _, err := os.Stat(local); err == nil {
			continue
		}
		if err := f.download(conn, path.Join(dir, entry.Name), local); err != nil {
			zap.L().Warn("extract: ftp download failed",
				zap.String("file", entry.Name), zap.Error(err))
			continue
		}
		fetched++
	}
	return fetched, nil
}

func (f *FTPInbox) download(conn *ftp.ServerConn, remote, local string) error {
	resp, err := conn.Retr(remote)
	if err != nil {
		return eris.Wrapf(err, "extract: ftp retr %s", remote)
	}
	defer resp.Close() //nolint:errcheck

	tmp := local + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "extract: create temp file")
	}
	if _, err := io.Copy(file, resp); err != nil {
		file.Close()   //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrap(err, "extract: write temp file")
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrap(err, "extract: close temp file")
	}
	return eris.Wrap(os.Rename(tmp, local), "extract: finalize download")
}

// parseFTPURL extracts host (with port) and directory path from an FTP URL.
func parseFTPURL(rawURL string) (host string, dir string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "extract: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("extract: expected ftp scheme, got %q", u.Scheme)
	}
	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	dir = u.Path
	if dir == "" {
		dir = "/"
	}
	return host, dir, nil
}
