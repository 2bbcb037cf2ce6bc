package apperrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidationError_ListsAllFields(t *testing.T) {
	err := NewValidation("missing required fields", "billing_email", "billing_phone")
	require.Equal(t, "missing required fields: billing_email, billing_phone", err.Error())
}

func TestKinds_SurviveWrapping(t *testing.T) {
	wrapped := errors.Wrap(&UpstreamError{Op: "create order", Message: "boom"}, "sync")
	require.True(t, IsUpstream(wrapped))
	require.False(t, IsValidation(wrapped))

	nf := errors.Wrap(&NotFoundError{Resource: "order", ID: "A1"}, "load")
	require.True(t, IsNotFound(nf))
	require.Equal(t, "load: order not found: A1", nf.Error())

	require.True(t, IsAuth(errors.Wrap(&AuthError{Message: "no token"}, "x")))
	require.Equal(t, []string{"a", "b"}, ValidationFields(errors.Wrap(NewValidation("", "a", "b"), "y")))
	require.Nil(t, ValidationFields(errors.New("plain")))
}
