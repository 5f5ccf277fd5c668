package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.4.0"

	v, commit, date := Info()
	assert.Equal(t, "1.4.0", v)
	assert.Equal(t, "tiresias 1.4.0 (commit: "+commit+", built: "+date+")", String())
}
