package config

import (
	"os"
	"sync"
)

// dockerHostGateway reaches the host machine from inside a container.
const dockerHostGateway = "host.docker.internal"

var (
	dockerOnce sync.Once
	inDocker   bool
)

// IsRunningInDocker reports whether the process runs inside a Docker container,
// detected by /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	dockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	return inDocker
}

// ResolveHostForDocker maps loopback database hosts to the Docker host gateway
// when running in a container, so a PostgreSQL on the host stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, docker bool) string {
	if !docker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostGateway
	default:
		return host
	}
}
