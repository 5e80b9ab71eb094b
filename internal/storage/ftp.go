package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

type FTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Dir        string
	TLS        bool
	PublicBase string
	Timeout    time.Duration
}

// FTPStore uploads objects to the web host over FTP, one connection per Put.
type FTPStore struct {
	config FTPConfig
}

func NewFTPStore(config FTPConfig) *FTPStore {
	if config.Port == 0 {
		config.Port = 21
	}
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	return &FTPStore{config: config}
}

func (s *FTPStore) dial(ctx context.Context) (*ftp.ServerConn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithTimeout(s.config.Timeout),
		ftp.DialWithContext(ctx),
	}
	if s.config.TLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: s.config.Host}))
	}

	conn, err := ftp.Dial(fmt.Sprintf("%s:%d", s.config.Host, s.config.Port), opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp: dial: %w", err)
	}
	if err := conn.Login(s.config.Username, s.config.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftp: login: %w", err)
	}
	return conn, nil
}

// ensureDir walks into dir from the login directory, creating what is missing.
func ensureDir(conn *ftp.ServerConn, dir string) error {
	absolute := strings.HasPrefix(dir, "/")
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return nil
	}
	if absolute {
		if err := conn.ChangeDir("/"); err != nil {
			return err
		}
	}
	for _, part := range strings.Split(dir, "/") {
		if err := conn.ChangeDir(part); err == nil {
			continue
		}
		if err := conn.MakeDir(part); err != nil {
			return fmt.Errorf("mkdir %s: %w", part, err)
		}
		if err := conn.ChangeDir(part); err != nil {
			return err
		}
	}
	return nil
}

func (s *FTPStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	if err := ensureDir(conn, s.config.Dir); err != nil {
		return "", fmt.Errorf("ftp: %w", err)
	}
	if err := conn.Stor(name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("ftp: stor %s: %w", name, err)
	}
	return publicURL(s.config.PublicBase, name), nil
}
