//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/proctable/pkg/procfs"
	"github.com/ja7ad/proctable/pkg/proctable"
)

type opts struct {
	// sampling
	samples  int
	interval time.Duration

	// display
	top     int
	sortKey string

	// refresh
	workers int
	noTasks bool

	configPath string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "proctable [PID|PID..PID]...",
		Short: "Live process table with CPU and disk usage",
		Long: `The proctable tool samples Linux processes (all of them, or the PIDs
given as arguments) and prints a live table of CPU usage, memory and
disk I/O rates. CPU usage is computed from /proc tick deltas between
samples, so the first table appears after one full interval.

Examples:
  proctable
  proctable -i 2s -n 10 --sort mem
  proctable -s 5 12345 23456 30000..30032`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.configPath != "" {
				if err := applyConfig(cmd, o.configPath, &o); err != nil {
					return err
				}
			}
			return run(cmd.Context(), o, args)
		},
	}

	root.Flags().IntVarP(&o.samples, "samples", "s", 0, "number of tables to print (0 = run until Ctrl-C)")
	root.Flags().DurationVarP(&o.interval, "interval", "i", time.Second, "sampling interval (e.g. 1s, 500ms)")
	root.Flags().IntVarP(&o.top, "top", "n", 20, "show only the top N processes (0 = all)")
	root.Flags().StringVar(&o.sortKey, "sort", "cpu", "sort column: cpu, mem or disk")
	root.Flags().IntVar(&o.workers, "workers", 0, "parallel refresh workers (0 = sequential)")
	root.Flags().BoolVar(&o.noTasks, "no-tasks", false, "skip per-thread accounting")
	root.Flags().StringVarP(&o.configPath, "config", "c", "", "INI config file with sampler defaults")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts, args []string) error {
	pids, err := parsePids(args)
	if err != nil {
		return err
	}
	if o.interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	switch o.sortKey {
	case "cpu", "mem", "disk":
	default:
		return fmt.Errorf("unknown sort column %q", o.sortKey)
	}

	src := procfs.New()
	defer src.Close()

	tableOpts := []proctable.Option{}
	if o.workers > 0 {
		tableOpts = append(tableOpts, proctable.WithWorkers(o.workers))
	}
	table := proctable.New(src, tableOpts...)

	kind := proctable.RefreshEverything()
	if o.noTasks {
		kind = kind.WithoutTasks()
	}
	sel := proctable.All()
	if len(pids) > 0 {
		sel = proctable.Pids(pids...)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// priming pass: usage and rates need two samples
	if _, err := table.Refresh(sel, true, kind); err != nil {
		return err
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	sampleN := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted")
			return nil

		case <-ticker.C:
			n, err := table.Refresh(sel, true, kind)
			if err != nil {
				slog.Warn("refresh", "err", err)
				continue
			}
			if n == 0 && len(pids) > 0 {
				fmt.Println("# all watched processes exited")
				return nil
			}

			render(table, o)

			sampleN++
			if o.samples > 0 && sampleN >= o.samples {
				return nil
			}
		}
	}
}

func render(table *proctable.Table, o opts) {
	procs := make([]*proctable.Process, 0, table.Len())
	table.Range(func(p *proctable.Process) bool {
		procs = append(procs, p)
		return true
	})
	slices.SortFunc(procs, compareBy(o.sortKey))
	if o.top > 0 && len(procs) > o.top {
		procs = procs[:o.top]
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s  (%d processes)\n", time.Now().Format("2006-01-02 15:04:05"), table.Len())
	fmt.Fprintln(tw, "PID\tNAME\tSTATUS\tCPU%\tMEM\tVIRT\tREAD\tWRITE\tUPTIME")
	for _, p := range procs {
		du := p.DiskUsage()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\t%s\t%s\t%s\t%s\n",
			p.Pid(), p.Name(), p.Status(), p.CPUUsage(),
			p.Memory().Humanized(), p.VirtualMemory().Humanized(),
			du.ReadBytes.HumanizedRate(o.interval),
			du.WrittenBytes.HumanizedRate(o.interval),
			(time.Duration(p.RunTime()) * time.Second).String(),
		)
	}
	fmt.Fprintln(tw)
	tw.Flush()
}

func compareBy(key string) func(a, b *proctable.Process) int {
	switch key {
	case "mem":
		return func(a, b *proctable.Process) int {
			return int(int64(b.Memory()) - int64(a.Memory()))
		}
	case "disk":
		return func(a, b *proctable.Process) int {
			da := uint64(a.DiskUsage().ReadBytes) + uint64(a.DiskUsage().WrittenBytes)
			db := uint64(b.DiskUsage().ReadBytes) + uint64(b.DiskUsage().WrittenBytes)
			switch {
			case db > da:
				return 1
			case db < da:
				return -1
			default:
				return 0
			}
		}
	default:
		return func(a, b *proctable.Process) int {
			switch {
			case b.CPUUsage() > a.CPUUsage():
				return 1
			case b.CPUUsage() < a.CPUUsage():
				return -1
			default:
				return int(a.Pid() - b.Pid())
			}
		}
	}
}

// parsePids expands arguments of the form "123" or "100..110" into a
// pid list.
func parsePids(args []string) ([]proctable.Pid, error) {
	var pids []proctable.Pid
	for _, arg := range args {
		lo, hi, isRange := strings.Cut(arg, "..")
		if !isRange {
			v, err := strconv.ParseInt(arg, 10, 32)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("invalid pid %q", arg)
			}
			pids = append(pids, proctable.Pid(v))
			continue
		}
		from, err := strconv.ParseInt(lo, 10, 32)
		if err != nil || from <= 0 {
			return nil, fmt.Errorf("invalid pid range %q", arg)
		}
		to, err := strconv.ParseInt(hi, 10, 32)
		if err != nil || to < from {
			return nil, fmt.Errorf("invalid pid range %q", arg)
		}
		for v := from; v <= to; v++ {
			pids = append(pids, proctable.Pid(v))
		}
	}
	return pids, nil
}
