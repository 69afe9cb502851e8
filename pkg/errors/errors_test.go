package errors

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkCollaborator(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, MarkCollaborator(nil, "select words"))
	})

	t.Run("marks and keeps context", func(t *testing.T) {
		err := MarkCollaborator(New("disk I/O error"), "select words")
		assert.True(t, IsCollaboratorFailure(err))
		assert.False(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "select words")
		assert.Contains(t, err.Error(), "disk I/O error")
	})

	t.Run("no rows is also not found", func(t *testing.T) {
		err := MarkCollaboratorf(sql.ErrNoRows, "select discourse %d", 7)
		assert.True(t, IsCollaboratorFailure(err))
		assert.True(t, IsNotFound(err))
		assert.True(t, Is(err, sql.ErrNoRows))
		assert.Contains(t, err.Error(), "select discourse 7")
	})

	t.Run("carries a stack trace", func(t *testing.T) {
		err := MarkCollaborator(New("boom"), "insert entity")
		assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
	})
}

func TestConsentDeniedMessageIsFixed(t *testing.T) {
	assert.Equal(t, "you must agree to the usage policy to continue", ErrConsentDenied.Error())
}
