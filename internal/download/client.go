// Package download wraps the torrent client behind the small surface
// the screener needs: add an approved item and preview metadata.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"

	"feed_screener/internal/model"
)

const torrentFileMaxSize = 10 << 20

// Client owns one torrent session for the process lifetime.
type Client struct {
	client          *torrent.Client
	httpClient      *http.Client
	log             *slog.Logger
	dataDir         string
	metadataTimeout time.Duration
}

// NewClient starts a torrent session storing data under dataDir.
// metadataTimeout bounds how long a metadata preview may wait for peers.
func NewClient(dataDir string, metadataTimeout time.Duration, log *slog.Logger) (*Client, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	tc, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("start torrent client: %w", err)
	}
	return &Client{
		client:          tc,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		log:             log,
		dataDir:         dataDir,
		metadataTimeout: metadataTimeout,
	}, nil
}

// Close shuts the torrent session down.
func (c *Client) Close() error {
	errs := c.client.Close()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Add registers a torrent from a magnet URI or .torrent URL and starts
// downloading all of it into outputDir.
func (c *Client) Add(ctx context.Context, uri, outputDir string) (*model.DownloadResult, error) {
	spec, err := c.specFromURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	if outputDir != "" && outputDir != c.dataDir {
		spec.Storage = storage.NewFile(outputDir)
	}

	t, _, err := c.client.AddTorrentSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}

	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		t.Drop()
		return nil, ctx.Err()
	}

	t.DownloadAll()
	files := make([]string, 0, len(t.Files()))
	for _, f := range t.Files() {
		files = append(files, f.Path())
	}
	hash := t.InfoHash().HexString()
	c.log.Info("download started", "name", t.Name(), "info_hash", hash, "files", len(files))
	return &model.DownloadResult{
		ID:       hash,
		InfoHash: hash,
		Name:     t.Name(),
		Files:    files,
	}, nil
}

// FetchMetadata resolves the info dictionary for a magnet or torrent
// URL without downloading content, then drops the torrent.
func (c *Client) FetchMetadata(ctx context.Context, uri string) (*model.TorrentMetadata, error) {
	spec, err := c.specFromURI(ctx, uri)
	if err != nil {
		return nil, err
	}

	t, _, err := c.client.AddTorrentSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}
	defer t.Drop()

	waitCtx, cancel := context.WithTimeout(ctx, c.metadataTimeout)
	defer cancel()
	select {
	case <-t.GotInfo():
	case <-waitCtx.Done():
		return nil, fmt.Errorf("metadata for %q: %w", t.Name(), waitCtx.Err())
	}

	md := &model.TorrentMetadata{
		Name:      t.Name(),
		TotalSize: t.Length(),
		FileCount: len(t.Files()),
	}
	for _, f := range t.Files() {
		md.Files = append(md.Files, model.TorrentFilePreview{
			Name:         f.Path(),
			Size:         f.Length(),
			IsVideo:      isVideoFile(f.Path()),
			IsSuspicious: isSuspiciousFile(f.Path()),
		})
	}
	return md, nil
}

func (c *Client) specFromURI(ctx context.Context, uri string) (*torrent.TorrentSpec, error) {
	if strings.HasPrefix(uri, "magnet:") {
		spec, err := torrent.TorrentSpecFromMagnetUri(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: parse magnet: %v", model.ErrInvalidInput, err)
		}
		return spec, nil
	}
	return c.specFromTorrentURL(ctx, uri)
}

func (c *Client) specFromTorrentURL(ctx context.Context, url string) (*torrent.TorrentSpec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download torrent file: %v", model.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: torrent file returned status %d", model.ErrFetch, resp.StatusCode)
	}
	mi, err := metainfo.Load(io.LimitReader(resp.Body, torrentFileMaxSize))
	if err != nil {
		return nil, fmt.Errorf("%w: parse torrent file: %v", model.ErrParse, err)
	}
	return torrent.TorrentSpecFromMetaInfo(mi), nil
}

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
	".ts": true,
}

var suspiciousExtensions = map[string]bool{
	".exe": true, ".scr": true, ".bat": true, ".cmd": true, ".msi": true,
	".com": true, ".pif": true, ".vbs": true, ".js": true, ".jar": true,
	".lnk": true,
}

func isVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

func isSuspiciousFile(path string) bool {
	return suspiciousExtensions[strings.ToLower(filepath.Ext(path))]
}
