package component

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_RegisterResolve(t *testing.T) {
	c := NewCatalog()
	c.Register("b", func(*slog.Logger) (any, error) { return "b-handler", nil })
	c.Register("a", func(*slog.Logger) (any, error) { return "a-handler", nil })

	h, err := c.Resolve("a", discard())
	require.NoError(t, err)
	assert.Equal(t, "a-handler", h)
	assert.Equal(t, []string{"a", "b"}, c.Refs())
}

func TestCatalog_Overwrite(t *testing.T) {
	c := NewCatalog()
	c.Register("a", func(*slog.Logger) (any, error) { return 1, nil })
	c.Register("a", func(*slog.Logger) (any, error) { return 2, nil })

	h, err := c.Resolve("a", discard())
	require.NoError(t, err)
	assert.Equal(t, 2, h)
}

func TestCatalog_Unknown(t *testing.T) {
	c := NewCatalog()

	_, err := c.Resolve("x", discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown handler reference "x" (available: none)`)

	c.Register("y", func(*slog.Logger) (any, error) { return nil, nil })

	_, err = c.Resolve("x", discard())
	assert.Contains(t, err.Error(), "available: y")
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "upload", UploadRequired.String())
	assert.Equal(t, "local", HandledLocally.String())
}

func TestCapabilitiesOf_None(t *testing.T) {
	caps := CapabilitiesOf(nil)
	assert.True(t, caps.Empty())
	assert.Empty(t, caps.Names())
}
