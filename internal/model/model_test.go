package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, ProcessingState("ready").Valid())
}

func TestUser_Partition(t *testing.T) {
	u := User{ID: "u1"}
	assert.Equal(t, "u1", u.Partition())

	empty := ""
	u.TenantID = &empty
	assert.Equal(t, "u1", u.Partition())

	other := "u2"
	u.TenantID = &other
	assert.Equal(t, "u2", u.Partition())
}

func TestVideoUpdate_Empty(t *testing.T) {
	assert.True(t, VideoUpdate{}.Empty())
	p := 50
	assert.False(t, VideoUpdate{Progress: &p}.Empty())
}
