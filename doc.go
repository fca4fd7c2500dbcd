// Package otg generates time-optimal jerk-limited motion on the fly.
//
// Given a current kinematic state, a target state and per-axis limits
// on velocity, acceleration and jerk, the package synthesizes S-curve
// trajectories that reach the target in minimum time, synchronizes the
// axes to a common duration, and serves the result one control cycle
// at a time.
// Key types: Generator (cached per-cycle control), Tracker (moving
// targets), Input/Output (caller-owned parameter blocks), Trajectory
// (immutable, queryable plan).
//
// The core is pure computation: no I/O, no logging, no goroutines.
// Instances are single-threaded by contract; distinct instances are
// independent. Trajectories may be sampled concurrently.
//
// The numeric machinery lives in internal/solver (per-axis synthesis),
// internal/blocksync (duration synchronization) and internal/waypoint
// (chaining through intermediate positions).
package otg