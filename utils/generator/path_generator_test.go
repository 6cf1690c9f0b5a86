package generator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGeneratePhotoIdentifiers(t *testing.T) {
	pg := NewPathGenerator()
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	ids := pg.GeneratePhotoIdentifiers(".JPG", at)

	assert.True(t, strings.HasSuffix(ids.Filename, ".jpg"))
	assert.Len(t, ids.Filename, 32+len(".jpg"))
	assert.Equal(t, "photos/2024/01/15/"+ids.Filename, ids.StoragePath)
	assert.True(t, IsValidFilename(ids.Filename))
}

func TestGeneratePhotoIdentifiersUnique(t *testing.T) {
	pg := NewPathGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ids := pg.GeneratePhotoIdentifiers("png", time.Now())
		assert.False(t, seen[ids.Filename])
		seen[ids.Filename] = true
	}
}

func TestIsValidFilename(t *testing.T) {
	valid := []string{"abc.jpg", "3f2a9c.png", "a-b_c.webp", "noext"}
	invalid := []string{"", "../etc/passwd", "a/b.jpg", ".hidden", "a.b.c", `a\b.jpg`, strings.Repeat("a", 200)}

	for _, name := range valid {
		assert.True(t, IsValidFilename(name), name)
	}
	for _, name := range invalid {
		assert.False(t, IsValidFilename(name), name)
	}
}
