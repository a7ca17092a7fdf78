package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectKeepsOrder(t *testing.T) {
	pairs := []Pair{
		{Task: task("t2", "open", "p", "", 3), Employee: employee("e2", false)},
		{Task: task("t1", "open", "p", "", 4), Employee: employee("e1", false)},
	}

	records := Project(pairs)
	assert.Equal(t, "t2", records[0].ID)
	assert.Equal(t, "Employee e2", records[0].Executor)
	assert.Equal(t, "t1", records[1].ID)
	assert.Equal(t, "e1", records[1].ExecutorID)
	assert.Empty(t, Project(nil))
}
