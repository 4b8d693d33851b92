package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/yangstore/pkg/types"
)

func newTestSession(id string) *Session {
	loader := newFakeLoader()
	schema := &fakeSchema{info: map[string]*types.SchemaInfo{}}
	return New(id, types.Credentials{UserID: "alice"}, types.Running, loader, schema, nil)
}

func TestNewSessionStartsIdleOnRequestedDatastore(t *testing.T) {
	s := newTestSession("sess-1")
	assert.Equal(t, types.Running, s.CurrentDatastore())
	assert.Equal(t, types.Idle, s.State())
}

func TestSessionHasIndependentWorkingSetsPerDatastore(t *testing.T) {
	s := newTestSession("sess-1")
	assert.NotSame(t, s.WorkingSet(types.Startup), s.WorkingSet(types.Running))
	assert.NotSame(t, s.WorkingSet(types.Running), s.WorkingSet(types.Candidate))
}

func TestSwitchDatastoreChangesCurrent(t *testing.T) {
	s := newTestSession("sess-1")
	s.SwitchDatastore(types.Candidate)
	assert.Equal(t, types.Candidate, s.CurrentDatastore())
}

func TestDiscardChangesClearsLogAndWorkingSet(t *testing.T) {
	s := newTestSession("sess-1")
	ws := s.WorkingSet(types.Running)
	_, err := ws.GetOrLoad(context.Background(), "example-module")
	require.NoError(t, err)
	s.OpLog(types.Running).Append(types.Operation{Kind: types.OpSet, XPath: "/a"})

	s.DiscardChanges(types.Running)

	assert.Nil(t, ws.Peek("example-module"))
	assert.Equal(t, 0, s.OpLog(types.Running).Len())
}

func TestSessionLockedFilesTracking(t *testing.T) {
	s := newTestSession("sess-1")
	s.AddLockedFile("/data/example-module.running")
	assert.Contains(t, s.LockedFiles(), "/data/example-module.running")
	s.RemoveLockedFile("/data/example-module.running")
	assert.Empty(t, s.LockedFiles())
}

func TestSessionErrorStateIsSticky(t *testing.T) {
	s := newTestSession("sess-1")
	assert.Nil(t, s.ErrorState())
	s.SetErrorState(types.NewError(types.Internal, "boom"))
	assert.Error(t, s.ErrorState())
}

func TestSessionStateTransitions(t *testing.T) {
	s := newTestSession("sess-1")
	s.SetState(types.WaitingForProviderData)
	assert.Equal(t, types.WaitingForProviderData, s.State())
	s.SetState(types.DataLoaded)
	assert.Equal(t, types.DataLoaded, s.State())
}

func TestCommitIDForNotificationRoundTrips(t *testing.T) {
	s := newTestSession("sess-1")
	assert.Equal(t, "", s.CommitIDForNotification())
	s.SetCommitIDForNotification("abc123")
	assert.Equal(t, "abc123", s.CommitIDForNotification())
}
