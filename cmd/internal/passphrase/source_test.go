package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironmentOnce(t *testing.T) {
	t.Setenv("LEND_TEST_PASSPHRASE", "first")
	src := NewSource("LEND_TEST_PASSPHRASE", "")
	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "first", value)

	t.Setenv("LEND_TEST_PASSPHRASE", "second")
	value, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "first", value)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("LEND_TEST_PASSPHRASE", "   ")
	_, err := NewSource("LEND_TEST_PASSPHRASE", "borrower keystore").Get()
	require.ErrorContains(t, err, "set but empty")
}
