package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	id := uuid.New()

	ts, refID, err := decodeCursor(encodeCursor(at, id))
	require.NoError(t, err)
	assert.True(t, ts.Equal(at))
	assert.Equal(t, id, refID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{
		"not base64!!",
		"aGVsbG8=",                 // decodes but has no separator
		"MTIzNHxub3QtYS11dWlk",     // "1234|not-a-uuid"
		"bm90YW51bWJlcnwxMjM0NTY=", // "notanumber|123456"
	} {
		_, _, err := decodeCursor(cursor)
		assert.Error(t, err, "cursor %q", cursor)
	}
}
