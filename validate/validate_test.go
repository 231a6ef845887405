package validate_test

import (
	"testing"

	"github.com/jrsteele09/go-stickies/validate"
	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"a@b.co",
		"first.last@sub.domain.org",
		"user+tag@example.io",
	}
	for _, s := range valid {
		require.True(t, validate.Email(s), "expected %q to be valid", s)
	}

	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		"user@domain",
		"user @example.com",
		"user@exa mple.com",
		"user@@example.com",
	}
	for _, s := range invalid {
		require.False(t, validate.Email(s), "expected %q to be invalid", s)
	}
}

func TestPassword(t *testing.T) {
	t.Run("meets all requirements", func(t *testing.T) {
		require.True(t, validate.Password("Password123$"))
		require.True(t, validate.Password("aB3@aB3@"))
	})

	t.Run("too short", func(t *testing.T) {
		require.False(t, validate.Password("aB3@aB3"))
	})

	t.Run("missing a character class", func(t *testing.T) {
		require.False(t, validate.Password("password123$")) // no uppercase
		require.False(t, validate.Password("PASSWORD123$")) // no lowercase
		require.False(t, validate.Password("Passwordabc$")) // no digit
		require.False(t, validate.Password("Password1234")) // no symbol
	})

	t.Run("disallowed characters", func(t *testing.T) {
		require.False(t, validate.Password("Password123$ "))
		require.False(t, validate.Password("Password123#"))
	})
}

func TestName(t *testing.T) {
	t.Run("one or two alphabetic tokens", func(t *testing.T) {
		require.True(t, validate.Name("Jo"))
		require.True(t, validate.Name("Jo Doe"))
		require.True(t, validate.Name("Madonna"))
	})

	t.Run("rejected shapes", func(t *testing.T) {
		require.False(t, validate.Name(""))
		require.False(t, validate.Name("J"))
		require.False(t, validate.Name("Jo Doe Smith"))
		require.False(t, validate.Name("Jo3"))
		require.False(t, validate.Name("Jo-Doe"))
	})
}

func TestReasonMessages(t *testing.T) {
	require.Equal(t, "Please enter a valid email address.", validate.ReasonEmailInvalid.Message())
	require.Equal(t, "Invalid code provided. Please try again.", validate.ReasonOtpInvalid.Message())
	require.NotEmpty(t, validate.ReasonPasswordInvalid.Message())
	require.NotEmpty(t, validate.ReasonOtpExpired.Message())
	require.NotEmpty(t, validate.ReasonNameInvalid.Message())
	require.NotEmpty(t, validate.ReasonLoginFailed.Message())
}
