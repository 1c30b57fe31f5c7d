package idgen

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULIDGeneratorIsSortableWithinMillisecond(t *testing.T) {
	gen := NewULIDGenerator()
	now := time.Now()

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen.Make(now)
	}

	assert.True(t, sort.StringsAreSorted(ids))
	assert.Len(t, ids[0], 26)
}

func TestULIDGeneratorFollowsTime(t *testing.T) {
	gen := NewULIDGenerator()
	earlier := gen.Make(time.Now())
	later := gen.Make(time.Now().Add(time.Second))
	assert.Less(t, earlier, later)
}

func TestUUIDGenerator(t *testing.T) {
	id := UUIDGenerator{}.Make(time.Time{})
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}
