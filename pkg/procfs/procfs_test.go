//go:build linux

package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ja7ad/proctable/pkg/proctable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc builds a synthetic proc tree in a temp dir.
type fakeProc struct {
	t    *testing.T
	root string
}

func newFakeProc(t *testing.T) *fakeProc {
	t.Helper()
	f := &fakeProc{t: t, root: t.TempDir()}
	f.writeFile("stat", "cpu  100 0 100 800 0 0 0 0 0 0\ncpu0 50 0 50 400 0 0 0 0 0 0\ncpu1 50 0 50 400 0 0 0 0 0 0\nbtime 1700000000\n")
	f.writeFile("uptime", "500.00 950.00\n")
	return f
}

func (f *fakeProc) writeFile(rel, content string) {
	f.t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fakeProc) addProcess(pid int, comm string, utime, stime uint64) {
	f.t.Helper()
	dir := fmt.Sprintf("%d", pid)
	f.writeFile(filepath.Join(dir, "stat"), statLineFor(pid, comm, utime, stime, 2000))
	f.writeFile(filepath.Join(dir, "io"), "read_bytes: 4096\nwrite_bytes: 8192\n")
	f.writeFile(filepath.Join(dir, "cmdline"), "/usr/bin/"+comm+"\x00-v\x00")
	f.writeFile(filepath.Join(dir, "environ"), "HOME=/root\x00TERM=xterm\x00")
	f.writeFile(filepath.Join(dir, "status"), "Name:\t"+comm+"\nUid:\t1000\t1000\t1000\t1000\nGid:\t1000\t1000\t1000\t1000\n")
	// task dir contains the main thread only
	f.writeFile(filepath.Join(dir, "task", dir, "stat"), statLineFor(pid, comm, utime, stime, 2000))
}

func (f *fakeProc) addTask(pid, tid int, comm string) {
	f.t.Helper()
	f.writeFile(filepath.Join(fmt.Sprintf("%d", pid), "task", fmt.Sprintf("%d", tid), "stat"),
		statLineFor(tid, comm, 5, 5, 3000))
}

func (f *fakeProc) removeProcess(pid int) {
	f.t.Helper()
	require.NoError(f.t, os.RemoveAll(filepath.Join(f.root, fmt.Sprintf("%d", pid))))
}

// statLineFor renders a /proc/<pid>/stat line with the fields the
// parser consumes filled in. starttime is in jiffies since boot; vsize
// is 1 MiB, rss 10 pages.
func statLineFor(pid int, comm string, utime, stime, startTicks uint64) string {
	return fmt.Sprintf(
		"%d (%s) S 1 %d %d 0 -1 4194560 0 0 0 0 %d %d 0 0 20 0 1 0 %d 1048576 10 18446744073709551615 0 0 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0",
		pid, comm, pid, pid, utime, stime, startTicks)
}

func newTestSource(t *testing.T, f *fakeProc, opts ...Option) *ProcFS {
	t.Helper()
	t.Setenv("CLK_TCK", "100")
	t.Setenv("PAGE_SIZE", "4096")
	src := New(append([]Option{WithRoot(f.root)}, opts...)...)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestBatch_All(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)
	f.addProcess(200, "redis", 20, 0)

	src := newTestSource(t, f)
	recs, err := src.Batch(proctable.All(), proctable.RefreshEverything())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byPid := make(map[proctable.Pid]proctable.Record)
	for _, r := range recs {
		byPid[r.Pid] = r
	}

	nginx := byPid[100]
	assert.Equal(t, "nginx", nginx.Name)
	assert.Equal(t, proctable.StatusSleep, nginx.Status)
	assert.True(t, nginx.HasParent)
	assert.Equal(t, proctable.Pid(1), nginx.Parent)
	// startTicks 2000 / CLK_TCK 100 = 20s after boot
	assert.Equal(t, uint64(1700000020), nginx.StartTime)
	assert.Equal(t, uint64(480), nginx.RunTime)
	assert.True(t, nginx.HasCPU)
	assert.Equal(t, uint64(15), nginx.CPUTicks)
	assert.True(t, nginx.HasMemory)
	assert.Equal(t, uint64(10*4096), nginx.Memory)
	assert.Equal(t, uint64(1048576), nginx.VirtualMemory)
	assert.True(t, nginx.HasIO)
	assert.Equal(t, uint64(4096), nginx.ReadBytes)
	assert.Equal(t, uint64(8192), nginx.WrittenBytes)
	assert.Empty(t, nginx.Tasks)

	assert.Equal(t, uint64(20), byPid[200].CPUTicks)
}

func TestBatch_RespectsRefreshKind(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)

	src := newTestSource(t, f)
	recs, err := src.Batch(proctable.All(), proctable.RefreshNothing())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.False(t, rec.HasCPU)
	assert.False(t, rec.HasMemory)
	assert.False(t, rec.HasIO)
	assert.Equal(t, "nginx", rec.Name)
	assert.Equal(t, proctable.StatusSleep, rec.Status)
}

func TestBatch_Some(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)
	f.addProcess(200, "redis", 20, 0)

	src := newTestSource(t, f)
	recs, err := src.Batch(proctable.Pids(200, 999), proctable.RefreshEverything())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, proctable.Pid(200), recs[0].Pid)
}

func TestBatch_Tasks(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)
	f.addTask(100, 101, "worker")
	f.addTask(100, 102, "worker")

	src := newTestSource(t, f)
	recs, err := src.Batch(proctable.All(), proctable.RefreshEverything())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	tids := make([]proctable.Pid, 0, len(recs[0].Tasks))
	for _, task := range recs[0].Tasks {
		tids = append(tids, task.Pid)
		assert.Equal(t, "worker", task.Name)
		assert.Equal(t, uint64(10), task.CPUTicks)
	}
	assert.ElementsMatch(t, []proctable.Pid{101, 102}, tids)
}

func TestBatch_SourceUnavailable(t *testing.T) {
	f := newFakeProc(t)
	src := newTestSource(t, f)
	require.NoError(t, os.RemoveAll(f.root))

	_, err := src.Batch(proctable.All(), proctable.RefreshEverything())
	assert.ErrorIs(t, err, proctable.ErrSourceUnavailable)
}

func TestBatch_VanishedProcessDropsHandle(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)

	src := newTestSource(t, f)
	_, err := src.Batch(proctable.All(), proctable.RefreshEverything())
	require.NoError(t, err)
	assert.Len(t, src.handles, 1)

	f.removeProcess(100)
	recs, err := src.Batch(proctable.All(), proctable.RefreshEverything())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, src.handles)
}

func TestBatch_HandleBudgetFallsBackToOneShot(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)
	f.addProcess(200, "redis", 20, 0)
	f.addProcess(300, "postgres", 30, 0)

	src := newTestSource(t, f, WithMaxHandles(1))
	recs, err := src.Batch(proctable.All(), proctable.RefreshEverything())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Len(t, src.handles, 1)

	// budget does not affect subsequent cycles
	recs, err = src.Batch(proctable.All(), proctable.RefreshEverything())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestMetadata(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)
	dir := filepath.Join(f.root, "100")
	require.NoError(t, os.Symlink("/usr/bin/nginx", filepath.Join(dir, "exe")))
	require.NoError(t, os.Symlink("/var/www", filepath.Join(dir, "cwd")))
	require.NoError(t, os.Symlink("/", filepath.Join(dir, "root")))

	src := newTestSource(t, f)
	want := proctable.MetaCmd | proctable.MetaExe | proctable.MetaCwd |
		proctable.MetaRoot | proctable.MetaEnviron | proctable.MetaUser
	md, err := src.Metadata(100, want)
	require.NoError(t, err)
	assert.Equal(t, want, md.Got)
	assert.Equal(t, []string{"/usr/bin/nginx", "-v"}, md.Cmd)
	assert.Equal(t, "/usr/bin/nginx", md.Exe)
	assert.Equal(t, "/var/www", md.Cwd)
	assert.Equal(t, "/", md.Root)
	assert.Equal(t, []string{"HOME=/root", "TERM=xterm"}, md.Environ)
	assert.Equal(t, uint32(1000), md.UserID)
	assert.Equal(t, uint32(1000), md.GroupID)
}

func TestMetadata_PartialFailure(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)
	// no exe/cwd/root symlinks

	src := newTestSource(t, f)
	md, err := src.Metadata(100, proctable.MetaCmd|proctable.MetaExe)
	require.NoError(t, err)
	assert.Equal(t, proctable.MetaCmd, md.Got)
	assert.Empty(t, md.Exe)
}

func TestMetadata_NoSuchProcess(t *testing.T) {
	f := newFakeProc(t)
	src := newTestSource(t, f)

	_, err := src.Metadata(999, proctable.MetaCmd)
	assert.ErrorIs(t, err, proctable.ErrNoRecord)
}

func TestCPUTotals(t *testing.T) {
	f := newFakeProc(t)
	src := newTestSource(t, f)

	total, cores, err := src.CPUTotals()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), total)
	assert.Equal(t, 2, cores)
}

// End-to-end through the table: two cycles against the fake tree with
// the counters advancing between them.
func TestTableIntegration(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10, 5)

	src := newTestSource(t, f)
	table := proctable.New(src)

	n, err := table.Refresh(proctable.All(), true, proctable.RefreshEverything())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, ok := table.Get(100)
	require.True(t, ok)
	assert.Equal(t, "nginx", p.Name())
	assert.Equal(t, []string{"/usr/bin/nginx", "-v"}, p.Cmd())
	assert.EqualValues(t, 0, p.CPUUsage())

	// second cycle: process gains 100 work jiffies, machine gains 500
	f.addProcess(100, "nginx", 80, 35)
	f.writeFile("stat", "cpu  300 0 200 1000 0 0 0 0 0 0\ncpu0 150 0 100 500 0 0 0 0 0 0\ncpu1 150 0 100 500 0 0 0 0 0 0\nbtime 1700000000\n")

	_, err = table.Refresh(proctable.All(), true, proctable.RefreshEverything())
	require.NoError(t, err)

	p, ok = table.Get(100)
	require.True(t, ok)
	// workDelta 100 over perCore 500/2 on 2 cores -> 40%
	assert.InDelta(t, 40.0, float64(p.CPUUsage()), 0.01)
	assert.Equal(t, uint64(4096), p.DiskUsage().TotalReadBytes.Uint64())

	f.removeProcess(100)
	_, err = table.Refresh(proctable.All(), true, proctable.RefreshEverything())
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}
