package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Target   string `validate:"required,ledger_address"`
	Coverage int64  `validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		err := ValidateStruct(createRequest{Target: "0xabc123", Coverage: 1_000_000})
		assert.NoError(t, err)
	})

	t.Run("missing target", func(t *testing.T) {
		err := ValidateStruct(createRequest{Coverage: 1})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Target")
	})

	t.Run("non-hex target", func(t *testing.T) {
		err := ValidateStruct(createRequest{Target: "not-an-address", Coverage: 1})
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err), "Target")
	})

	t.Run("zero coverage", func(t *testing.T) {
		err := ValidateStruct(createRequest{Target: "0xabc", Coverage: 0})
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err), "Coverage")
	})
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0xdeadbeef"))
	assert.NoError(t, ValidateAddress("DEADBEEF"))
	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("0x"))
	assert.Error(t, ValidateAddress("hello world"))
}

func TestValidateRequired(t *testing.T) {
	assert.NoError(t, ValidateRequired("x", "field"))
	assert.Error(t, ValidateRequired("", "field"))
}
