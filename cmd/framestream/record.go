package main

import (
	"github.com/spf13/cobra"
)

var recordFlags struct {
	enabled bool
	dir     string
	file    string
	fps     float64
	width   int
	height  int
}

// addRecordFlags registers the recording flags shared by serve and view.
func addRecordFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVarP(&recordFlags.enabled, "record", "r", false, "record frames to a video file")
	f.StringVar(&recordFlags.dir, "record-dir", ".", "directory for the recording")
	f.StringVar(&recordFlags.file, "record-file", "outpy.avi", "recording file name")
	f.Float64Var(&recordFlags.fps, "record-fps", 10, "frame rate written to the recording")
	f.IntVar(&recordFlags.width, "record-width", 640, "recorded frame width")
	f.IntVar(&recordFlags.height, "record-height", 480, "recorded frame height")
}

func applyRecordFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("record") {
		cfg.Recording.Enabled = recordFlags.enabled
	}
	if f.Changed("record-dir") {
		cfg.Recording.Path = recordFlags.dir
	}
	if f.Changed("record-file") {
		cfg.Recording.FileName = recordFlags.file
	}
	if f.Changed("record-fps") {
		cfg.Recording.FPS = recordFlags.fps
	}
	if f.Changed("record-width") {
		cfg.Recording.Width = recordFlags.width
	}
	if f.Changed("record-height") {
		cfg.Recording.Height = recordFlags.height
	}
}
