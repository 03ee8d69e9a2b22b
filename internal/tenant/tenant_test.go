package tenant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.NotEqual(t, uuid.Nil, id.UserID)
	assert.NotEqual(t, uuid.Nil, id.AccountID)
	assert.NotEqual(t, id.UserID, id.AccountID)
	assert.Equal(t, uuid.Version(4), id.UserID.Version())

	other := New()
	assert.NotEqual(t, id, other)
}
