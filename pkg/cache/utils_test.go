package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "prices:2024-01-02:5", Key("prices", "2024-01-02", 5))
	assert.Equal(t, "prices", Key("prices"))
	assert.Equal(t, "prices:*", Pattern("prices"))
	assert.Equal(t, HashKey("A", "B"), HashKey("A", "B"))
	assert.NotEqual(t, HashKey("A", "B"), HashKey("B", "A"))
	assert.Len(t, HashKey("A"), 32)
}
