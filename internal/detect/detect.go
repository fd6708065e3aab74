// Package detect identifies the kind of host the process runs on.
package detect

import (
	"os"
	goruntime "runtime"
	"sync"
)

// Runtime is the detected execution environment.
type Runtime int

const (
	Other Runtime = iota
	Docker
	Kubernetes
	MacOS
	Windows
)

func (r Runtime) String() string {
	switch r {
	case Docker:
		return "docker"
	case Kubernetes:
		return "kubernetes"
	case MacOS:
		return "desktop-mac"
	case Windows:
		return "desktop-windows"
	default:
		return "other"
	}
}

// Detector reports the current Runtime.
type Detector interface {
	Detect() Runtime
}

// Static is a Detector that always reports the same Runtime.
type Static Runtime

// Detect implements Detector.
func (s Static) Detect() Runtime {
	return Runtime(s)
}

// Probe inspects the filesystem, the environment and GOOS. The first
// result is cached for the life of the Probe.
type Probe struct {
	Exists func(path string) bool
	Getenv func(name string) string
	GOOS   string

	once   sync.Once
	result Runtime
}

// NewProbe returns a Probe over the real host.
func NewProbe() *Probe {
	return &Probe{
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		Getenv: os.Getenv,
		GOOS:   goruntime.GOOS,
	}
}

// Detect implements Detector.
func (p *Probe) Detect() Runtime {
	p.once.Do(func() {
		p.result = p.probe()
	})
	return p.result
}

func (p *Probe) probe() Runtime {
	switch {
	case p.Exists("/var/run/secrets/kubernetes.io") || p.Getenv("KUBERNETES_SERVICE_HOST") != "":
		return Kubernetes
	case p.Exists("/.dockerenv"):
		return Docker
	case p.GOOS == "darwin":
		return MacOS
	case p.GOOS == "windows":
		return Windows
	default:
		return Other
	}
}

var (
	defaultProbe     *Probe
	defaultProbeOnce sync.Once
)

// Default returns the process-wide Probe.
func Default() Detector {
	defaultProbeOnce.Do(func() {
		defaultProbe = NewProbe()
	})
	return defaultProbe
}
