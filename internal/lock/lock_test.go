package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/purewipe/internal/helper"
	"github.com/lakshaymaurya-felt/purewipe/internal/safety"
)

type fakeProcess struct {
	pid      int32
	name     string
	exe      string
	files    []string
	filesErr error
	killed   bool
	killErr  error
}

func (p *fakeProcess) PID() int32                           { return p.pid }
func (p *fakeProcess) Name(context.Context) (string, error) { return p.name, nil }
func (p *fakeProcess) Exe(context.Context) (string, error)  { return p.exe, nil }
func (p *fakeProcess) OpenFiles(context.Context) ([]string, error) {
	return p.files, p.filesErr
}

func (p *fakeProcess) Kill(context.Context) error {
	if p.killErr != nil {
		return p.killErr
	}
	p.killed = true
	return nil
}

type fakeSource struct {
	procs []*fakeProcess
	err   error
}

func (s *fakeSource) Processes(context.Context) ([]Process, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Process, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p)
	}
	return out, nil
}

type fakeHandles struct {
	refs     []helper.HandleRef
	findErr  error
	closed   []helper.HandleRef
	closeErr error
}

func (h *fakeHandles) Find(context.Context, string) ([]helper.HandleRef, error) {
	return h.refs, h.findErr
}

func (h *fakeHandles) Close(_ context.Context, ref helper.HandleRef) error {
	if h.closeErr != nil {
		return h.closeErr
	}
	h.closed = append(h.closed, ref)
	return nil
}

func TestHolders(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.log")
	tool := filepath.Join(dir, "tool.exe")

	src := &fakeSource{procs: []*fakeProcess{
		{pid: 10, name: "notepad.exe", exe: "/apps/notepad.exe", files: []string{target}},
		{pid: 11, name: "tool.exe", exe: tool},
		{pid: 12, name: "idle", exe: "/apps/idle", files: []string{filepath.Join(dir, "other.log")}},
		{pid: 13, name: "denied", filesErr: errors.New("access denied")},
	}}
	d := NewDetector(Config{Source: src})

	holders, err := d.Holders(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, int32(10), holders[0].PID)
	assert.Equal(t, MatchOpenHandle, holders[0].MatchedBy)

	holders, err = d.Holders(context.Background(), tool)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, MatchExecutable, holders[0].MatchedBy)
	assert.Equal(t, "executable", holders[0].MatchedBy.String())

	locked, err := d.IsLocked(context.Background(), filepath.Join(dir, "free.txt"))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestHoldersEnumerationError(t *testing.T) {
	d := NewDetector(Config{Source: &fakeSource{err: errors.New("no snapshot")}})
	_, err := d.IsLocked(context.Background(), "/x")
	assert.ErrorContains(t, err, "enumerate processes")
}

func TestKillHolders(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "locked.txt")

	notepad := &fakeProcess{pid: 20, name: "notepad.exe", files: []string{target}}
	explorer := &fakeProcess{pid: 21, name: "Explorer.EXE", files: []string{target}}
	self := &fakeProcess{pid: int32(os.Getpid()), name: "purewipe", files: []string{target}}
	stubborn := &fakeProcess{pid: 22, name: "av.exe", files: []string{target}, killErr: errors.New("denied")}

	d := NewDetector(Config{
		Source:            &fakeSource{procs: []*fakeProcess{notepad, explorer, self, stubborn}},
		CriticalProcesses: []string{"explorer.exe"},
	})

	killed, err := d.KillHolders(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, killed)
	assert.True(t, notepad.killed)
	assert.False(t, explorer.killed)
	assert.False(t, self.killed)
	assert.False(t, stubborn.killed)
}

func TestKillHoldersNothingKilled(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "locked.txt")
	explorer := &fakeProcess{pid: 21, name: "explorer.exe", files: []string{target}}

	d := NewDetector(Config{
		Source:            &fakeSource{procs: []*fakeProcess{explorer}},
		CriticalProcesses: []string{"explorer.exe"},
	})
	killed, err := d.KillHolders(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestKillHoldersRefusesProtectedPath(t *testing.T) {
	dir := t.TempDir()
	critical := filepath.Join(dir, "kernel.img")
	holder := &fakeProcess{pid: 30, name: "loader", files: []string{critical}}

	guard := safety.NewGuard(safety.Lists{Critical: []string{critical}}, false)
	d := NewDetector(Config{Source: &fakeSource{procs: []*fakeProcess{holder}}, Guard: guard})

	_, err := d.KillHolders(context.Background(), critical)
	assert.ErrorIs(t, err, ErrProtected)
	assert.False(t, holder.killed)

	_, err = d.UnlockHandle(context.Background(), critical)
	assert.ErrorIs(t, err, ErrProtected)
}

func TestUnlockHandleClosesHandles(t *testing.T) {
	target := filepath.Join(t.TempDir(), "f.txt")
	handles := &fakeHandles{refs: []helper.HandleRef{
		{PID: 40, Handle: "1A4"},
		{PID: os.Getpid(), Handle: "2B0"},
	}}
	dispositions := 0
	d := NewDetector(Config{
		Source:      &fakeSource{},
		Handles:     handles,
		Disposition: func(string) error { dispositions++; return nil },
	})

	ok, err := d.UnlockHandle(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []helper.HandleRef{{PID: 40, Handle: "1A4"}}, handles.closed)
	assert.Zero(t, dispositions)
}

func TestUnlockHandleFallsBackToDisposition(t *testing.T) {
	target := filepath.Join(t.TempDir(), "f.txt")

	var marked []string
	d := NewDetector(Config{
		Source:      &fakeSource{},
		Handles:     &fakeHandles{findErr: helper.ErrUnavailable},
		Disposition: func(p string) error { marked = append(marked, p); return nil },
	})
	ok, err := d.UnlockHandle(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{target}, marked)

	d = NewDetector(Config{
		Source:      &fakeSource{},
		Disposition: func(string) error { return errors.New("sharing violation") },
	})
	ok, err = d.UnlockHandle(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlockHandleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDetector(Config{Source: &fakeSource{}, Disposition: func(string) error { return nil }})
	_, err := d.UnlockHandle(ctx, filepath.Join(t.TempDir(), "f"))
	assert.ErrorIs(t, err, context.Canceled)
}
