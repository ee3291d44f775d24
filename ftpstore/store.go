// Package ftpstore provides the FTP/FTPS content adapter. Uploads go to a
// randomized temporary remote name and are renamed into place; existence is
// probed with a SIZE query and timestamps with MDTM.
package ftpstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jlaffaye/ftp"

	"blobgate"
)

// Config holds the FTP server connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// TLS enables explicit FTPS (AUTH TLS with a protected data channel).
	TLS     bool
	BaseDir string
	// Timeout bounds the control connection dial and reads (default 10s).
	Timeout time.Duration
}

// Store implements blobgate.Storage against an FTP server. Every operation
// uses a fresh control connection; FTP sessions are stateful and cheap enough
// that pooling them is not worth the protocol bookkeeping.
type Store struct {
	cfg Config
}

func NewStore(cfg Config) *Store {
	if cfg.Port <= 0 {
		cfg.Port = 21
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "/"
	}
	return &Store{cfg: cfg}
}

func (s *Store) connect(ctx context.Context) (*ftp.ServerConn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.cfg.Timeout),
	}
	if s.cfg.TLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: s.cfg.Host}))
	}

	conn, err := ftp.Dial(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port), opts...)
	if err != nil {
		return nil, fmt.Errorf("dial ftp: %w", err)
	}

	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		quit(conn)
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	if s.cfg.BaseDir != "/" {
		if err := conn.ChangeDir(s.cfg.BaseDir); err != nil {
			quit(conn)
			return nil, fmt.Errorf("ftp chdir %q: %w", s.cfg.BaseDir, err)
		}
	}

	return conn, nil
}

// Save uploads blob content. The bytes go to a randomized temporary remote
// name first; only the final rename makes them visible under the derived key.
// If the rename fails the temporary object is removed best-effort and the
// error re-raised.
func (s *Store) Save(ctx context.Context, id string, data []byte) (blobgate.SaveResult, error) {
	key := blobgate.StorageKey(id)

	conn, err := s.connect(ctx)
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w", id, err)
	}
	defer quit(conn)

	if _, err := conn.FileSize(key); err == nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
	} else if !isUnavailable(err) {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: size probe: %w", id, err)
	}

	if err := ensureDirs(conn, key); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: create directories: %w", id, err)
	}

	tmp := fmt.Sprintf("%s.tmp-%s", key, uuid.New().String())
	if err := conn.Stor(tmp, bytes.NewReader(data)); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: upload: %w", id, err)
	}

	if err := conn.Rename(tmp, key); err != nil {
		if rmErr := conn.Delete(tmp); rmErr != nil {
			slog.Warn("failed to remove ftp tmp object", "name", tmp, "err", rmErr)
		}
		return blobgate.SaveResult{}, fmt.Errorf("save %q: rename into place: %w", id, err)
	}

	return blobgate.SaveResult{
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Get downloads blob content. The creation timestamp comes from an MDTM
// query, falling back to the current time on any failure.
func (s *Store) Get(ctx context.Context, id string) (blobgate.Object, error) {
	key := blobgate.StorageKey(id)

	conn, err := s.connect(ctx)
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, err)
	}
	defer quit(conn)

	size, err := conn.FileSize(key)
	if err != nil {
		if isUnavailable(err) {
			return blobgate.Object{}, fmt.Errorf("get %q: %w", id, blobgate.ErrNotFound)
		}
		return blobgate.Object{}, fmt.Errorf("get %q: size probe: %w", id, err)
	}

	createdAt := time.Now().UTC()
	if t, timeErr := conn.GetTime(key); timeErr == nil {
		createdAt = t.UTC()
	}

	r, err := conn.Retr(key)
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: retrieve: %w", id, err)
	}
	data, readErr := io.ReadAll(r)
	if closeErr := r.Close(); closeErr != nil {
		slog.Warn("failed to close ftp data connection", "key", key, "err", closeErr)
	}
	if readErr != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: read: %w", id, readErr)
	}

	if size <= 0 {
		size = int64(len(data))
	}

	return blobgate.Object{Data: data, Size: size, CreatedAt: createdAt}, nil
}

// Delete removes blob content. A 550 reply (no such file) is success.
func (s *Store) Delete(ctx context.Context, id string) error {
	key := blobgate.StorageKey(id)

	conn, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	defer quit(conn)

	if err := conn.Delete(key); err != nil && !isUnavailable(err) {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}

// ensureDirs creates every ancestor directory of key, one MKD per segment.
// A 550 reply means the directory already exists and is ignored.
func ensureDirs(conn *ftp.ServerConn, key string) error {
	parts := strings.Split(key, "/")
	cur := ""
	for _, p := range parts[:len(parts)-1] {
		if p == "" {
			continue
		}
		if cur == "" {
			cur = p
		} else {
			cur = cur + "/" + p
		}
		if err := conn.MakeDir(cur); err != nil && !isUnavailable(err) {
			return err
		}
	}
	return nil
}

// isUnavailable reports whether err is a 550 "file unavailable" FTP reply,
// the code servers use for both "no such file" and "already exists".
func isUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}

func quit(conn *ftp.ServerConn) {
	if err := conn.Quit(); err != nil {
		slog.Debug("ftp quit failed", "err", err)
	}
}
