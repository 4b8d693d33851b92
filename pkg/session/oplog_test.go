package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/yangstore/pkg/types"
)

func TestLogAppendAndEntries(t *testing.T) {
	log := NewLog()
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/a"})
	log.Append(types.Operation{Kind: types.OpDelete, XPath: "/b"})

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/a", entries[0].XPath)
	assert.Equal(t, "/b", entries[1].XPath)
}

func TestLogClearEmptiesEntries(t *testing.T) {
	log := NewLog()
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/a"})
	log.Clear()
	assert.Equal(t, 0, log.Len())
}

func TestReplayDropsFailingEntriesAndKeepsSucceeding(t *testing.T) {
	log := NewLog()
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/good-1"})
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/bad"})
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/good-2"})

	log.Replay(func(op *types.Operation) error {
		if op.XPath == "/bad" {
			return types.NewError(types.ValidationFailed, "boom")
		}
		return nil
	})

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/good-1", entries[0].XPath)
	assert.Equal(t, "/good-2", entries[1].XPath)
}

func TestReplayStopsWhenNoFurtherErrors(t *testing.T) {
	log := NewLog()
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/a"})

	applyCount := 0
	log.Replay(func(op *types.Operation) error {
		applyCount++
		return nil
	})

	assert.Equal(t, 1, applyCount)
	assert.Equal(t, 1, log.Len())
}

func TestReplayAllFailingEntriesEmptiesLog(t *testing.T) {
	log := NewLog()
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/a"})
	log.Append(types.Operation{Kind: types.OpSet, XPath: "/b"})

	log.Replay(func(op *types.Operation) error {
		return types.NewError(types.ValidationFailed, "always fails")
	})

	assert.Equal(t, 0, log.Len())
}
