package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/custodix/evidence-engine/interfaces"
	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSBackend stores pack artifacts on an IPFS node through its files API.
// Artifacts live under a stable MFS path keyed by content identifier, so
// fetch-by-ID works without tracking IPFS CIDs separately.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	prefixes    map[interfaces.ContentType]string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates an IPFS storage backend connected to the node at
// host:port.
func NewIPFSBackend(host, port string, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	return &IPFSBackend{
		shell: shell.NewShell(apiURL),
		host:  host,
		port:  port,
		prefixes: map[interfaces.ContentType]string{
			interfaces.ManifestType: "manifests",
			interfaces.ArchiveType:  "archives",
		},
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/", apiURL),
	}, nil
}

// Fetch retrieves an artifact by content identifier and namespace. Returns
// ErrContentNotFound if nothing is stored under the ID, or
// ErrBackendUnavailable if the node is not reachable.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	path := b.getFilesPath(id, contentType)

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.FilesRead(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			b.log.Debug("Artifact not found in IPFS",
				slog.String("path", path),
				slog.String("content_id", id.String()),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to fetch artifact from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from IPFS: %w", err)
	}

	b.log.Debug("Fetched artifact from IPFS",
		slog.String("path", path),
		slog.String("content_id", id.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store writes an artifact to the node's files API and returns its content
// identifier. Returns ErrBackendUnavailable if the node is not reachable.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	path := b.getFilesPath(id, contentType)
	err := b.shell.FilesWrite(ctx, path, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	)
	if err != nil {
		return id, fmt.Errorf("failed to write artifact to IPFS: %w", err)
	}

	b.log.Debug("Stored artifact in IPFS",
		slog.String("path", path),
		slog.String("contentID", id.String()))

	return id, nil
}

// Available checks if the IPFS node is reachable.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) getFilesPath(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return fmt.Sprintf("/evidence/%s/%s", b.prefixes[contentType], id.String())
}
