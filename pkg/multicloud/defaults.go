package multicloud

import (
	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/internal/detect"
)

// DefaultBackendSection returns the backend section used when the
// configuration has none for the runtime rt. tempDir roots the local
// backend on hosts without a conventional location.
func DefaultBackendSection(rt detect.Runtime, tempDir string) map[string]interface{} {
	switch rt {
	case detect.Kubernetes:
		return map[string]interface{}{"type": backends.TypeAWS, "creds": "auto"}
	case detect.Docker:
		return map[string]interface{}{"type": backends.TypeTinyServer}
	case detect.MacOS:
		return map[string]interface{}{"type": backends.TypeLocal, "basedir": "/tmp"}
	case detect.Windows:
		return map[string]interface{}{"type": backends.TypeLocal, "basedir": `C:\tmp`}
	default:
		return map[string]interface{}{"type": backends.TypeLocal, "basedir": tempDir}
	}
}
