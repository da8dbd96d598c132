package procfs

import (
	"strconv"
	"strings"
)

// statLine is the parsed subset of /proc/<pid>/stat the table needs.
type statLine struct {
	comm       string
	state      byte
	ppid       int64
	utime      uint64 // user jiffies
	stime      uint64 // system jiffies
	startTicks uint64 // jiffies since boot at process start
	vsize      uint64 // virtual memory, bytes
	rssPages   uint64 // resident pages
}

// parseStat parses one /proc/<pid>/stat line.
//
// The file is awkward: the comm field (2nd) is wrapped in parentheses
// and may itself contain spaces and parentheses, so everything up to
// the *last* ") " belongs to pid+comm and only the remainder splits on
// whitespace.
func parseStat(data string) (statLine, error) {
	var s statLine

	i := strings.LastIndex(data, ") ")
	if i < 0 {
		return s, ErrNoStat
	}
	head := data[:i]
	if j := strings.IndexByte(head, '('); j >= 0 {
		s.comm = head[j+1:]
	} else {
		return s, ErrNoStat
	}

	fields := strings.Fields(data[i+2:])
	// state is the first post-comm field; starttime/vsize/rss are the
	// 20th/21st/22nd (fields 22-24 of the whole line).
	if len(fields) < 22 {
		return s, ErrShortStat
	}
	s.state = fields[0][0]

	get := func(idx int) uint64 {
		v, _ := strconv.ParseUint(fields[idx], 10, 64)
		return v
	}
	s.ppid, _ = strconv.ParseInt(fields[1], 10, 64)
	s.utime = get(11)
	s.stime = get(12)
	s.startTicks = get(19)
	s.vsize = get(20)
	s.rssPages = get(21)
	return s, nil
}

// parseIO extracts read_bytes and write_bytes from /proc/<pid>/io
// content. Both counters are cumulative bytes.
func parseIO(data string) (readBytes, writeBytes uint64, ok bool) {
	var done int
	for _, line := range strings.Split(data, "\n") {
		if v, found := strings.CutPrefix(line, "read_bytes:"); found {
			readBytes, _ = strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			done++
		} else if v, found := strings.CutPrefix(line, "write_bytes:"); found {
			writeBytes, _ = strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			done++
		}
		if done == 2 {
			return readBytes, writeBytes, true
		}
	}
	return 0, 0, false
}

// parseCPUTotals reads the aggregate "cpu " line of /proc/stat and
// counts the per-core "cpuN" lines. The total is the sum of every time
// column (work plus idle), in jiffies.
func parseCPUTotals(data string) (total uint64, cores int, err error) {
	seen := false
	for _, line := range strings.Split(data, "\n") {
		if !strings.HasPrefix(line, "cpu") {
			if seen {
				break
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "cpu" {
			seen = true
			for _, f := range fields[1:] {
				v, _ := strconv.ParseUint(f, 10, 64)
				total += v
			}
			continue
		}
		cores++
	}
	if !seen {
		return 0, 0, ErrNoCPU
	}
	return total, cores, nil
}

// parseBootTime extracts the btime field (seconds since epoch) from
// /proc/stat content.
func parseBootTime(data string) (uint64, bool) {
	for _, line := range strings.Split(data, "\n") {
		if v, found := strings.CutPrefix(line, "btime "); found {
			b, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			return b, err == nil
		}
	}
	return 0, false
}

// parseUptime extracts whole seconds of uptime from /proc/uptime.
func parseUptime(data string) uint64 {
	head, _, _ := strings.Cut(strings.TrimSpace(data), ".")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

// splitNul splits NUL-delimited file content (cmdline, environ) into
// its non-empty parts.
func splitNul(data []byte) []string {
	var out []string
	for _, part := range strings.Split(string(data), "\x00") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseUIDGID extracts the real uid and gid from /proc/<pid>/status
// content ("Uid:" and "Gid:" lines carry real, effective, saved, fs).
func parseUIDGID(data string) (uid, gid uint32, ok bool) {
	var haveUID, haveGID bool
	for _, line := range strings.Split(data, "\n") {
		if v, found := strings.CutPrefix(line, "Uid:"); found {
			fields := strings.Fields(v)
			if len(fields) > 0 {
				if id, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
					uid = uint32(id)
					haveUID = true
				}
			}
		} else if v, found := strings.CutPrefix(line, "Gid:"); found {
			fields := strings.Fields(v)
			if len(fields) > 0 {
				if id, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
					gid = uint32(id)
					haveGID = true
				}
			}
		}
		if haveUID && haveGID {
			return uid, gid, true
		}
	}
	return 0, 0, false
}
