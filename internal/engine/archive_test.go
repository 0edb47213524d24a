package engine

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiverWritePlain(t *testing.T) {
	dir := t.TempDir()
	archiver := NewArchiver("")

	payload := strings.Repeat("motion to dismiss ", 200)
	dest := filepath.Join(dir, "cases", "motion.txt.gz")

	size, checksum, err := archiver.Write(strings.NewReader(payload), dest, "high", false)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	sum := sha256.Sum256(data)
	assert.Equal(t, fmt.Sprintf("%x", sum), checksum)

	// The artifact is a readable gzip stream containing the original bytes.
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	restored, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, payload, string(restored))
}

func TestArchiverWriteEncrypted(t *testing.T) {
	dir := t.TempDir()
	archiver := NewArchiver("sealing-secret")

	payload := "privileged communication"
	dest := filepath.Join(dir, "doc.txt.gz.enc")

	size, checksum, err := archiver.Write(strings.NewReader(payload), dest, "low", true)
	require.NoError(t, err)
	assert.NotEmpty(t, checksum)
	assert.Greater(t, size, int64(0))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	// Sealed output must not be a readable gzip stream.
	_, err = gzip.NewReader(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestArchiverEncryptWithoutKey(t *testing.T) {
	archiver := NewArchiver("")
	_, _, err := archiver.Write(strings.NewReader("x"), filepath.Join(t.TempDir(), "x"), "medium", true)
	assert.Error(t, err)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "a/b.pdf.gz", ArtifactName("a/b.pdf", false))
	assert.Equal(t, "a/b.pdf.gz.enc", ArtifactName("a/b.pdf", true))
}
