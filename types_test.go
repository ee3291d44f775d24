package blobgate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"blobgate"
)

func TestParseBackend(t *testing.T) {
	t.Run("valid backends", func(t *testing.T) {
		for _, s := range []string{"fs", "s3", "ftp", "db"} {
			backend, err := blobgate.ParseBackend(s)
			assert.NoError(t, err)
			assert.True(t, backend.IsValid())
			assert.Equal(t, s, string(backend))
		}
	})

	t.Run("invalid backends", func(t *testing.T) {
		for _, s := range []string{"", "FS", "tape", "s3 "} {
			_, err := blobgate.ParseBackend(s)
			assert.Error(t, err, "backend %q", s)
		}
	})
}

func TestValidateID(t *testing.T) {
	t.Run("accepts slashes unicode and max length", func(t *testing.T) {
		for _, id := range []string{
			"report.pdf",
			"nested/path/object",
			"名前.txt",
			strings.Repeat("a", blobgate.MaxIDBytes),
		} {
			assert.NoError(t, blobgate.ValidateID(id), "id %q", id)
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		assert.ErrorIs(t, blobgate.ValidateID(""), blobgate.ErrBadRequest)
	})

	t.Run("rejects over max bytes", func(t *testing.T) {
		err := blobgate.ValidateID(strings.Repeat("a", blobgate.MaxIDBytes+1))
		assert.ErrorIs(t, err, blobgate.ErrBadRequest)
	})

	t.Run("limit counts bytes not runes", func(t *testing.T) {
		// 業 is three bytes in UTF-8.
		err := blobgate.ValidateID(strings.Repeat("業", blobgate.MaxIDBytes/3+1))
		assert.ErrorIs(t, err, blobgate.ErrBadRequest)
	})

	t.Run("rejects invalid utf-8", func(t *testing.T) {
		assert.ErrorIs(t, blobgate.ValidateID("a\xff\xfeb"), blobgate.ErrBadRequest)
	})
}
