package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel_Valid(t *testing.T) {
	assert.True(t, LevelRead.Valid())
	assert.True(t, LevelWrite.Valid())
	assert.True(t, LevelAdmin.Valid())
	assert.False(t, Level("").Valid())
	assert.False(t, Level("owner").Valid())
	assert.False(t, Level("READ").Valid())
}

func TestLevel_AtLeast(t *testing.T) {
	assert.True(t, LevelRead.AtLeast(LevelRead))
	assert.False(t, LevelRead.AtLeast(LevelWrite))
	assert.False(t, LevelRead.AtLeast(LevelAdmin))

	assert.True(t, LevelWrite.AtLeast(LevelRead))
	assert.True(t, LevelWrite.AtLeast(LevelWrite))
	assert.False(t, LevelWrite.AtLeast(LevelAdmin))

	assert.True(t, LevelAdmin.AtLeast(LevelRead))
	assert.True(t, LevelAdmin.AtLeast(LevelWrite))
	assert.True(t, LevelAdmin.AtLeast(LevelAdmin))
}
