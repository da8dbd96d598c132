//go:build linux

package main

import (
	"fmt"
	"time"

	"github.com/Terry-Mao/goconf"
	"github.com/spf13/cobra"
)

// applyConfig loads sampler defaults from an INI file:
//
//	[sampler]
//	interval 2s
//	samples 10
//	top 15
//	workers 4
//	tasks true
//
// Flags set explicitly on the command line win over file values.
func applyConfig(cmd *cobra.Command, path string, o *opts) error {
	conf := goconf.New()
	if err := conf.Parse(path); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	sampler := conf.Get("sampler")
	if sampler == nil {
		return fmt.Errorf("config %s: no sampler section", path)
	}

	fromFile := func(flag string) bool { return !cmd.Flags().Changed(flag) }

	if fromFile("interval") {
		if s, err := sampler.String("interval"); err == nil {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("config %s: interval: %w", path, err)
			}
			o.interval = d
		}
	}
	if fromFile("samples") {
		if v, err := sampler.Int("samples"); err == nil {
			o.samples = int(v)
		}
	}
	if fromFile("top") {
		if v, err := sampler.Int("top"); err == nil {
			o.top = int(v)
		}
	}
	if fromFile("workers") {
		if v, err := sampler.Int("workers"); err == nil {
			o.workers = int(v)
		}
	}
	if fromFile("sort") {
		if s, err := sampler.String("sort"); err == nil {
			o.sortKey = s
		}
	}
	if fromFile("no-tasks") {
		if v, err := sampler.Bool("tasks"); err == nil {
			o.noTasks = !v
		}
	}
	return nil
}
