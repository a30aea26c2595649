package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestPartExpired(t *testing.T) {
	assert.False(t, PartExpired(nil), "uninitialized budget is not expired")
	assert.False(t, PartExpired(intPtr(10)))
	assert.True(t, PartExpired(intPtr(0)))
	assert.True(t, PartExpired(intPtr(-5)))
}

func TestClampReported(t *testing.T) {
	// Uninitialized budgets ignore client reports.
	assert.Nil(t, ClampReported(nil, 100))

	// A lower report shrinks the budget.
	got := ClampReported(intPtr(300), 120)
	assert.Equal(t, 120, *got)

	// A higher report can never grow it.
	got = ClampReported(intPtr(300), 900)
	assert.Equal(t, 300, *got)

	// Negative reports floor at zero.
	got = ClampReported(intPtr(300), -10)
	assert.Equal(t, 0, *got)
}

func TestDeductSpent(t *testing.T) {
	assert.Equal(t, 0, DeductSpent(nil, 60))
	assert.Equal(t, 140, DeductSpent(intPtr(200), 60))
	assert.Equal(t, 0, DeductSpent(intPtr(30), 90), "overdrawn budget floors at zero")
}
