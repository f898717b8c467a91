package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{"op only", NewStoreError("Ping", "", "", "database is locked", ErrConnectionFailed), "Ping: database is locked"},
		{"entity", NewStoreError("ListProvisions", "provision", "", "bad row", ErrInvalidData), "ListProvisions provision: bad row"},
		{"entity and id", NewStoreError("GetProvision", "provision", "prov_1", "provision not found", ErrNotFound), "GetProvision provision prov_1: provision not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	var err error = NewStoreError("GetProvision", "provision", "prov_1", "provision not found", ErrNotFound)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidData))

	var se *StoreError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "prov_1", se.ID)
}
