package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	for _, pw := range []string{"s3cret!", "", "päss wörd", strings.Repeat("x", 200)} {
		h, err := HashPassword(pw)
		require.NoError(t, err)
		assert.True(t, VerifyPassword(h, pw), "hash should verify its own password")
		assert.False(t, VerifyPassword(h, pw+"?"), "wrong password must not verify")
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	h1, err := HashPassword("same password")
	require.NoError(t, err)
	h2, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "two hashes of one password must use distinct salts")
	assert.True(t, VerifyPassword(h1, "same password"))
	assert.True(t, VerifyPassword(h2, "same password"))
}

func TestHashPasswordFormat(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)
	parts := strings.Split(h, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "100000", parts[0])
}

func TestVerifyPasswordMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"100000:onlytwo",
		"a:b:c:d",
		"abc:QUJD:QUJD",          // non-numeric iteration count
		"-5:QUJD:QUJD",           // non-positive iteration count
		"100000:!!!:QUJD",        // invalid base64 salt
		"100000:QUJD:!!!",        // invalid base64 key
		"100000:QUJD:",           // empty key
	}
	for _, c := range cases {
		assert.False(t, VerifyPassword(c, "pw"), "malformed hash %q must verify false", c)
	}
}
