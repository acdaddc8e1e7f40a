// Package envcfg reads the process-wide environment knobs: thread-pool
// size, the accept() EMFILE mitigation, and the single-accept backlog
// discipline. Each function reads the environment on every call; nothing is
// cached here. NewContext reads the thread-pool size and the EMFILE switch
// once, at construction. TCPSingleAccept is reported but is not consulted
// by the stream engine's listener.
package envcfg

import (
	"os"
	"strconv"
	"strings"
)

const (
	envThreadPoolSize    = "UV_THREADPOOL_SIZE"
	envAcceptEMFileTrick = "UV_ACCEPT_EMFILE_TRICK"
	envTCPSingleAccept   = "UV_TCP_SINGLE_ACCEPT"

	minThreadPoolSize     = 1
	maxThreadPoolSize     = 1024
	defaultThreadPoolSize = 4
)

// ThreadPoolSize returns UV_THREADPOOL_SIZE clamped to [1, 1024], defaulting
// to 4 when unset or unparsable.
func ThreadPoolSize() int {
	v := strings.TrimSpace(os.Getenv(envThreadPoolSize))
	if v == "" {
		return defaultThreadPoolSize
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultThreadPoolSize
	}
	if n < minThreadPoolSize {
		return minThreadPoolSize
	}
	if n > maxThreadPoolSize {
		return maxThreadPoolSize
	}
	return n
}

// AcceptEMFileTrick reports whether the "close spare fd, drain overload,
// reopen spare fd" EMFILE mitigation on accept() is enabled. Defaults on.
func AcceptEMFileTrick() bool {
	return boolEnv(envAcceptEMFileTrick, true)
}

// TCPSingleAccept reports whether a listener should accept at most one
// connection per readable event (the historical single-accept discipline)
// rather than draining the backlog in one event. Defaults on.
func TCPSingleAccept() bool {
	return boolEnv(envTCPSingleAccept, true)
}

func boolEnv(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "no":
		return false
	case "1", "true", "on", "yes":
		return true
	default:
		return def
	}
}
