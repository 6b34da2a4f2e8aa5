// Package model holds the data types shared between the native tools, the
// detection pipeline and the renderer payloads.
package model

// AppInfo identifies the frontmost application reported by the window detector.
type AppInfo struct {
	Name     string `json:"name"`
	BundleID string `json:"bundleId,omitempty"`
	PID      int    `json:"pid,omitempty"`
}

// Point is a screen coordinate in points.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a screen rectangle in points.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// SearchModeRecursive is the only listing mode the directory detector reports.
const SearchModeRecursive = "recursive"

// DirectoryInfo is the result of one directory detection, and the payload the
// renderer uses to populate file search suggestions.
type DirectoryInfo struct {
	Directory         string   `json:"directory,omitempty"`
	Files             []string `json:"files,omitempty"`
	FileCount         int      `json:"fileCount,omitempty"`
	Error             string   `json:"error,omitempty"`
	Success           bool     `json:"success,omitempty"`
	Partial           bool     `json:"partial,omitempty"`
	SearchMode        string   `json:"searchMode,omitempty"`
	DirectoryChanged  bool     `json:"directoryChanged,omitempty"`
	PreviousDirectory string   `json:"previousDirectory,omitempty"`
	FilesDisabled     bool     `json:"filesDisabled,omitempty"`
	Hint              string   `json:"hint,omitempty"`
	DetectionTimedOut bool     `json:"detectionTimedOut,omitempty"`
	FromCache         bool     `json:"fromCache,omitempty"`
	FromDraft         bool     `json:"fromDraft,omitempty"`
	AppName           string   `json:"appName,omitempty"`
	BundleID          string   `json:"bundleId,omitempty"`
}
