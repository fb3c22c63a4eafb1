package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	for _, id := range []string{"1", "abc", "A-b_c.9", strings.Repeat("x", 256)} {
		assert.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", "a:b", "a b", "ü", strings.Repeat("x", 257)} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, id)
	}
}

func TestActionKeys(t *testing.T) {
	k, err := GenActionKey("r1", "42")
	require.NoError(t, err)
	assert.Equal(t, "r:r1:a:42", k)

	prefix, err := GenActionPrefix("r1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k, prefix))

	meta, err := GenReportMetaKey("r1")
	require.NoError(t, err)
	assert.Equal(t, "r:r1:meta", meta)

	parts, err := ParseActionKey(k)
	require.NoError(t, err)
	assert.Equal(t, ActionKeyParts{ReportID: "r1", ActionID: "42"}, *parts)

	_, err = ParseActionKey(meta)
	assert.Error(t, err)
	_, err = GenActionKey("r1", "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("r;"), PrefixEnd([]byte("r:")))
	assert.Equal(t, []byte("b"), PrefixEnd([]byte{'a', 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))

	end := PrefixEnd([]byte("r:r1:a:"))
	assert.Greater(t, string(end), "r:r1:a:zzz")
	assert.Less(t, string(end), "r:r1:meta")
}
