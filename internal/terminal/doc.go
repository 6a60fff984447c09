// Package terminal allocates pseudo-terminal pairs and keeps their geometry
// in sync with the host display surface.
//
// A Session owns both ends of one allocation:
//   - master: read by the output relay, written by the input relay
//   - slave: bound to the child's stdin/stdout/stderr, switched to raw mode
//     once at allocation so the child sees bytes without line editing
//
// Both handles are released together by Session.Close. Geometry is clamped to
// MinCols x MinRows and unchanged sizes skip the ioctl entirely.
package terminal
