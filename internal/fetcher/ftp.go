package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads corpus files from anonymous FTP servers. Some
// prefectural data portals still publish their exports this way.
type FTPFetcher struct {
	timeout time.Duration
}

// NewFTPFetcher creates an FTPFetcher. A zero timeout defaults to 30s.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	t := opts.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &FTPFetcher{timeout: t}
}

// ftpAddr is the dialable address and remote path of an ftp:// URL.
type ftpAddr struct {
	host string // host:port, port defaulted to 21
	path string
}

func splitFTPURL(rawURL string) (ftpAddr, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpAddr{}, eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpAddr{}, eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return ftpAddr{}, eris.New("fetcher: ftp url has no path")
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}
	return ftpAddr{host: host, path: u.Path}, nil
}

// ftpTransfer keeps the control connection alive for the duration of a
// retrieval and quits it once the caller is done reading.
type ftpTransfer struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (t *ftpTransfer) Read(p []byte) (int, error) { return t.resp.Read(p) }

func (t *ftpTransfer) Close() error {
	err := t.resp.Close()
	if quitErr := t.conn.Quit(); err == nil {
		err = quitErr
	}
	if err != nil {
		return eris.Wrap(err, "fetcher: close ftp transfer")
	}
	return nil
}

// Download logs in anonymously and retrieves the file. Closing the returned
// reader ends the transfer and disconnects.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	addr, err := splitFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := ftp.Dial(addr.host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(f.timeout))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp dial %s", addr.host)
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	zap.L().Debug("ftp download", zap.String("host", addr.host), zap.String("path", addr.path))

	resp, err := conn.Retr(addr.path)
	if err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrapf(err, "fetcher: ftp retrieve %s", addr.path)
	}
	return &ftpTransfer{resp: resp, conn: conn}, nil
}

// DownloadToFile retrieves the FTP URL into dest and returns the byte count.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL string, dest string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: create %s", dest)
	}

	n, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", dest)
	}
	return n, nil
}
