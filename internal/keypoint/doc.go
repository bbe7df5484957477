// Package keypoint owns the per-frame stereo keypoint records.
//
// A Store holds the left and right records of one frame at a time and
// writes both views through to its Backend on every mutation. Landmark IDs
// are kept paired: an ID present in only one view is dropped from both
// before anything is persisted, and a frame whose views disagree on disk is
// rejected at load time rather than repaired.
//
// Key types: Record, Pair, Store, Backend, FileBackend.
package keypoint
