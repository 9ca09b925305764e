package http

import (
	xutil "ZoneDesk/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseFinite parses a finite float; empty, NaN and Inf are rejected.
func ParseFinite(s string) (float64, bool) { return xutil.ParseFinite(s) }
