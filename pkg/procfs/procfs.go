//go:build linux

package procfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ja7ad/proctable/pkg/proctable"
)

// ProcFS is the Linux raw snapshot source: it normalizes /proc into the
// records the process table consumes.
//
// Batch must be called from a single goroutine (the table does this);
// Metadata is stateless and safe to call concurrently, which is what
// the table's parallel update phase relies on.
type ProcFS struct {
	root     string
	clkTck   uint64
	pageSize uint64
	bootTime uint64

	// handles keeps /proc/<pid>/stat open between cycles to skip the
	// open/close churn on hot refresh loops, bounded by budget.
	handles map[proctable.Pid]*os.File
	budget  *handleBudget
}

// Option configures a ProcFS.
type Option func(*ProcFS)

// WithRoot points the source at an alternate proc mount. Used by tests
// and by callers inspecting containers via /proc bind mounts.
func WithRoot(dir string) Option {
	return func(f *ProcFS) { f.root = dir }
}

// WithMaxHandles overrides the kept-open stat-file ceiling, which
// otherwise derives from RLIMIT_NOFILE (half the hard limit).
func WithMaxHandles(n int) Option {
	return func(f *ProcFS) { f.budget = newHandleBudget(n) }
}

// New returns a source reading from /proc.
func New(opts ...Option) *ProcFS {
	f := &ProcFS{
		root:     "/proc",
		clkTck:   clockTicks(),
		pageSize: uint64(pageSize()),
		handles:  make(map[proctable.Pid]*os.File),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.budget == nil {
		f.budget = newHandleBudget(defaultMaxHandles())
	}
	if data, err := os.ReadFile(filepath.Join(f.root, "stat")); err == nil {
		f.bootTime, _ = parseBootTime(string(data))
	}
	return f
}

// Batch implements proctable.Source.
func (f *ProcFS) Batch(sel proctable.Selector, kind proctable.RefreshKind) ([]proctable.Record, error) {
	if _, err := os.Stat(f.root); err != nil {
		return nil, fmt.Errorf("%w: %v", proctable.ErrSourceUnavailable, err)
	}
	uptime := f.uptime()

	if sel.IsAll() {
		entries, err := os.ReadDir(f.root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", proctable.ErrSourceUnavailable, err)
		}
		var recs []proctable.Record
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			pid64, err := strconv.ParseInt(e.Name(), 10, 32)
			if err != nil {
				continue
			}
			if rec, ok := f.record(proctable.Pid(pid64), kind, uptime); ok {
				recs = append(recs, rec)
			}
		}
		f.pruneHandles(recs)
		return recs, nil
	}

	var recs []proctable.Record
	for _, pid := range sel.List() {
		if rec, ok := f.record(pid, kind, uptime); ok {
			recs = append(recs, rec)
		} else {
			f.dropHandle(pid)
		}
	}
	return recs, nil
}

// record builds one raw record. A false return means the process was
// gone or unreadable by the time we got to it, which is not an error
// for the batch.
func (f *ProcFS) record(pid proctable.Pid, kind proctable.RefreshKind, uptime uint64) (proctable.Record, bool) {
	dir := filepath.Join(f.root, strconv.Itoa(int(pid)))
	data, err := f.readStat(pid, dir)
	if err != nil {
		return proctable.Record{}, false
	}
	rec, ok := f.buildRecord(pid, dir, data, kind, uptime)
	if !ok {
		return proctable.Record{}, false
	}
	if kind.Tasks() {
		rec.Tasks = f.taskRecords(pid, dir, kind, uptime)
	}
	return rec, true
}

func (f *ProcFS) buildRecord(pid proctable.Pid, dir, data string, kind proctable.RefreshKind, uptime uint64) (proctable.Record, bool) {
	st, err := parseStat(data)
	if err != nil {
		return proctable.Record{}, false
	}

	clk := f.clkTck
	if clk == 0 {
		clk = 100
	}
	startNoBoot := st.startTicks / clk

	rec := proctable.Record{
		Pid:       pid,
		Name:      st.comm,
		Status:    proctable.StatusFromChar(st.state),
		StartTime: startNoBoot + f.bootTime,
	}
	if uptime > startNoBoot {
		rec.RunTime = uptime - startNoBoot
	}
	if st.ppid > 0 {
		rec.Parent = proctable.Pid(st.ppid)
		rec.HasParent = true
	}
	if kind.CPU() {
		rec.CPUTicks = st.utime + st.stime
		rec.HasCPU = true
	}
	if kind.Memory() {
		rec.Memory = st.rssPages * f.pageSize
		rec.VirtualMemory = st.vsize
		rec.HasMemory = true
	}
	if kind.DiskUsage() {
		// Not all processes expose io (kernel threads, permissions).
		if b, err := os.ReadFile(filepath.Join(dir, "io")); err == nil {
			if r, w, ok := parseIO(string(b)); ok {
				rec.ReadBytes = r
				rec.WrittenBytes = w
				rec.HasIO = true
			}
		}
	}
	return rec, true
}

// taskRecords enumerates /proc/<pid>/task. The <tid> equal to the pid
// is the main thread, already represented by the process itself, and
// is skipped. Task stat files are read one-shot: the handle budget is
// spent on processes only.
func (f *ProcFS) taskRecords(pid proctable.Pid, dir string, kind proctable.RefreshKind, uptime uint64) []proctable.Record {
	entries, err := os.ReadDir(filepath.Join(dir, "task"))
	if err != nil {
		return nil
	}
	var tasks []proctable.Record
	for _, e := range entries {
		tid64, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil || proctable.Pid(tid64) == pid {
			continue
		}
		tid := proctable.Pid(tid64)
		taskDir := filepath.Join(dir, "task", e.Name())
		data, err := os.ReadFile(filepath.Join(taskDir, "stat"))
		if err != nil {
			continue
		}
		if rec, ok := f.buildRecord(tid, taskDir, string(data), kind, uptime); ok {
			tasks = append(tasks, rec)
		}
	}
	return tasks
}

// readStat reads /proc/<pid>/stat, preferring a kept-open handle. A
// stale handle (the process died, possibly replaced) fails the re-read
// and falls back to a fresh open.
func (f *ProcFS) readStat(pid proctable.Pid, dir string) (string, error) {
	if h, ok := f.handles[pid]; ok {
		if data, err := rewindAndRead(h); err == nil {
			return data, nil
		}
		f.dropHandle(pid)
	}

	file, err := os.Open(filepath.Join(dir, "stat"))
	if err != nil {
		return "", err
	}
	data, err := rewindAndRead(file)
	if err != nil {
		file.Close()
		return "", err
	}
	if f.budget.acquire() {
		f.handles[pid] = file
	} else {
		file.Close()
	}
	return data, nil
}

func rewindAndRead(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrNoStat
	}
	return string(data), nil
}

// pruneHandles closes handles for pids absent from a full scan, so the
// cache tracks live processes only.
func (f *ProcFS) pruneHandles(recs []proctable.Record) {
	live := make(map[proctable.Pid]struct{}, len(recs))
	for i := range recs {
		live[recs[i].Pid] = struct{}{}
	}
	for pid := range f.handles {
		if _, ok := live[pid]; !ok {
			f.dropHandle(pid)
		}
	}
}

func (f *ProcFS) dropHandle(pid proctable.Pid) {
	if h, ok := f.handles[pid]; ok {
		h.Close()
		delete(f.handles, pid)
		f.budget.release()
	}
}

// Metadata implements proctable.Source. Fields that cannot be read are
// simply absent from the result's Got mask.
func (f *ProcFS) Metadata(pid proctable.Pid, want proctable.MetaField) (proctable.Metadata, error) {
	dir := filepath.Join(f.root, strconv.Itoa(int(pid)))
	var md proctable.Metadata

	if want&proctable.MetaCmd != 0 {
		if b, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
			md.Cmd = splitNul(b)
			md.Got |= proctable.MetaCmd
		}
	}
	if want&proctable.MetaEnviron != 0 {
		if b, err := os.ReadFile(filepath.Join(dir, "environ")); err == nil {
			md.Environ = splitNul(b)
			md.Got |= proctable.MetaEnviron
		}
	}
	if want&proctable.MetaExe != 0 {
		if target, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
			md.Exe = target
			md.Got |= proctable.MetaExe
		}
	}
	if want&proctable.MetaCwd != 0 {
		if target, err := os.Readlink(filepath.Join(dir, "cwd")); err == nil {
			md.Cwd = target
			md.Got |= proctable.MetaCwd
		}
	}
	if want&proctable.MetaRoot != 0 {
		if target, err := os.Readlink(filepath.Join(dir, "root")); err == nil {
			md.Root = target
			md.Got |= proctable.MetaRoot
		}
	}
	if want&proctable.MetaUser != 0 {
		if b, err := os.ReadFile(filepath.Join(dir, "status")); err == nil {
			if uid, gid, ok := parseUIDGID(string(b)); ok {
				md.UserID = uid
				md.GroupID = gid
				md.Got |= proctable.MetaUser
			}
		}
	}

	if md.Got == 0 {
		if _, err := os.Stat(dir); err != nil {
			return md, fmt.Errorf("pid %d: %w", pid, proctable.ErrNoRecord)
		}
	}
	return md, nil
}

// CPUTotals implements proctable.Source.
func (f *ProcFS) CPUTotals() (uint64, int, error) {
	data, err := os.ReadFile(filepath.Join(f.root, "stat"))
	if err != nil {
		return 0, 0, fmt.Errorf("read %s/stat: %w", f.root, err)
	}
	return parseCPUTotals(string(data))
}

// Close releases every kept-open stat handle.
func (f *ProcFS) Close() error {
	for pid := range f.handles {
		f.dropHandle(pid)
	}
	return nil
}

func (f *ProcFS) uptime() uint64 {
	data, err := os.ReadFile(filepath.Join(f.root, "uptime"))
	if err != nil {
		return 0
	}
	return parseUptime(string(data))
}

// clockTicks returns jiffies per second. The CLK_TCK env var overrides
// it for testing; the authoritative value is sysconf(_SC_CLK_TCK), but
// that needs cgo, and 100 is the universal default.
func clockTicks() uint64 {
	if v, _ := strconv.ParseUint(os.Getenv("CLK_TCK"), 10, 64); v > 0 {
		return v
	}
	return 100
}

// pageSize returns the memory page size, overridable via PAGE_SIZE for
// testing.
func pageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}
