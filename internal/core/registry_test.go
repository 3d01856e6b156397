package core

import (
	"testing"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFormat_Builtin(t *testing.T) {
	for _, name := range []string{"jsonlines", "JSONLines", "jsonl"} {
		h, ok := LookupFormat(name)
		require.True(t, ok, name)

		_, isFrom := h(jsonl.DirectionFrom).(jsonl.CopyFromRoutine)
		_, isTo := h(jsonl.DirectionTo).(jsonl.CopyToRoutine)
		assert.True(t, isFrom, name)
		assert.True(t, isTo, name)
	}

	_, ok := LookupFormat("csv")
	assert.False(t, ok)
}

func TestRegisterFormat(t *testing.T) {
	RegisterFormat("Custom", jsonl.Handler)
	t.Cleanup(func() { unregisterFormat("custom") })

	_, ok := LookupFormat("CUSTOM")
	assert.True(t, ok)
	assert.Contains(t, Formats(), "custom")

	assert.Panics(t, func() { RegisterFormat("custom", jsonl.Handler) })
}

func TestFormats_Sorted(t *testing.T) {
	names := Formats()
	assert.IsIncreasing(t, names)
	assert.Subset(t, names, []string{"jsonl", "jsonlines"})
}
