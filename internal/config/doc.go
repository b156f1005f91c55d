// Package config provides configuration structures and utilities for spiderq.
// It defines the storage backend, queue throttling and consumer settings,
// and how they are layered: defaults, then the .spiderq file, then flags.
package config
