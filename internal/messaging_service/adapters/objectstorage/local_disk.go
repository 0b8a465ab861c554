package objectstorage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LocalDiskStorage stores attachment objects on the local filesystem and
// issues JWT-signed, time-limited retrieval URLs. Suitable for single-node
// deployments; the Storage port keeps an S3-style backend swappable.
type LocalDiskStorage struct {
	baseDir    string
	baseURL    string // public base, e.g. "https://api.example.com"
	signingKey []byte
	logger     *slog.Logger
}

type urlClaims struct {
	Ref string `json:"ref"`
	jwt.RegisteredClaims
}

// NewLocalDiskStorage creates the storage root if needed.
func NewLocalDiskStorage(baseDir, baseURL string, signingKey []byte, logger *slog.Logger) (*LocalDiskStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment dir %s: %w", baseDir, err)
	}
	return &LocalDiskStorage{
		baseDir:    baseDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		logger:     logger.With("component", "local_disk_storage"),
	}, nil
}

// Put writes content under a key built from a timestamp plus a random suffix,
// so concurrent uploads cannot collide and objects are write-once.
func (s *LocalDiskStorage) Put(ctx context.Context, displayName string, content []byte) (Object, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return Object{}, fmt.Errorf("failed to generate storage key: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(displayName))
	ref := fmt.Sprintf("%s-%s%s", time.Now().UTC().Format("20060102T150405"), hex.EncodeToString(suffix), ext)

	path := filepath.Join(s.baseDir, ref)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return Object{}, fmt.Errorf("failed to write object %s: %w", ref, err)
	}

	s.logger.DebugContext(ctx, "Stored attachment object", "ref", ref, "byte_size", len(content))
	return Object{
		Ref:         ref,
		DisplayName: displayName,
		ByteSize:    int64(len(content)),
	}, nil
}

func (s *LocalDiskStorage) Get(ctx context.Context, ref string) ([]byte, error) {
	path, err := s.refPath(ref)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object %s: %w", ref, err)
	}
	return content, nil
}

func (s *LocalDiskStorage) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	path, err := s.refPath(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("failed to stat object %s: %w", ref, err)
	}

	now := time.Now().UTC()
	claims := urlClaims{
		Ref: ref,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", ref, err)
	}

	return fmt.Sprintf("%s/attachments/%s?token=%s", s.baseURL, url.PathEscape(ref), url.QueryEscape(token)), nil
}

// VerifyToken validates a retrieval token and returns the granted ref.
// Expired or tampered tokens fail with ErrObjectNotFound semantics left to
// the caller; the error here describes the token problem.
func (s *LocalDiskStorage) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &urlClaims{}, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid attachment token: %w", err)
	}
	claims, ok := parsed.Claims.(*urlClaims)
	if !ok || claims.Ref == "" {
		return "", errors.New("invalid attachment token claims")
	}
	return claims.Ref, nil
}

// Delete removes the object. Best-effort by contract: a missing object is
// success, and callers must not roll back message deletions on failure here.
func (s *LocalDiskStorage) Delete(ctx context.Context, ref string) error {
	path, err := s.refPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object %s: %w", ref, err)
	}
	return nil
}

// refPath resolves a ref inside the storage root. Refs are flat keys; any
// path separator means a forged reference.
func (s *LocalDiskStorage) refPath(ref string) (string, error) {
	if ref == "" || strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return "", fmt.Errorf("invalid storage ref %q", ref)
	}
	return filepath.Join(s.baseDir, ref), nil
}
