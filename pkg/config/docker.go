package config

import (
	"os"
	"strings"
	"sync"
)

// DockerHostEnv overrides the address used to reach the host machine from a container.
const DockerHostEnv = "DOCKER_HOST_ALIAS"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the process runs inside a container (/.dockerenv exists).
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites loopback hosts of an external data source so that
// an engine running in a container reaches the database on the host machine.
// Non-loopback hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() || !isLoopback(host) {
		return host
	}
	if alias := os.Getenv(DockerHostEnv); alias != "" {
		return alias
	}
	return "host.docker.internal"
}

func isLoopback(host string) bool {
	switch strings.ToLower(strings.Trim(host, "[]")) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
