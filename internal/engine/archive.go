package engine

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// Archiver turns one source unit into an artifact on disk: compress, then
// optionally seal with ChaCha20-Poly1305 (nonce prepended to the payload),
// and checksum the final bytes.
type Archiver struct {
	key []byte
}

// NewArchiver derives a 256-bit sealing key from the configured secret.
// The secret may be empty if no job ever enables encryption.
func NewArchiver(secret string) *Archiver {
	var key []byte
	if secret != "" {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}
	return &Archiver{key: key}
}

func gzipLevel(level domain.CompressionLevel) int {
	switch level {
	case domain.CompressionLow:
		return gzip.BestSpeed
	case domain.CompressionHigh:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

// Write produces the artifact at destPath and returns its size and sha256
// checksum. The artifact directory is created as needed.
func (a *Archiver) Write(r io.Reader, destPath string, level domain.CompressionLevel, encrypt bool) (int64, string, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzipLevel(level))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		return 0, "", fmt.Errorf("compression failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, "", fmt.Errorf("compression failed: %w", err)
	}

	payload := buf.Bytes()
	if encrypt {
		payload, err = a.seal(payload)
		if err != nil {
			return 0, "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return 0, "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(destPath, payload, 0o640); err != nil {
		return 0, "", fmt.Errorf("failed to write artifact: %w", err)
	}

	sum := sha256.Sum256(payload)
	return int64(len(payload)), fmt.Sprintf("%x", sum), nil
}

func (a *Archiver) seal(plaintext []byte) ([]byte, error) {
	if len(a.key) == 0 {
		return nil, fmt.Errorf("encryption requested but no encryption key configured")
	}

	aead, err := chacha20poly1305.NewX(a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// ArtifactName maps a unit path to its artifact file name.
func ArtifactName(unitPath string, encrypted bool) string {
	name := unitPath + ".gz"
	if encrypted {
		name += ".enc"
	}
	return name
}
