package backends

import (
	"github.com/systmms/multicloud/pkg/backend"
)

// Type tags of the built-in variants.
const (
	TypeLocal      = "local"
	TypePortable   = "portable"
	TypeAWS        = "aws"
	TypeNAS        = "nas"
	TypeTinyServer = "tinyserver"
)

// RegisterBuiltins adds every built-in factory to r.
func RegisterBuiltins(r *backend.Registry) {
	r.Register(TypeLocal, NewLocalFromConfig)
	r.Register(TypePortable, NewPortableFromConfig)
	r.Register(TypeAWS, NewAWSFromConfig)
	r.Register(TypeNAS, NewNASFromConfig)
	r.Register(TypeTinyServer, NewTinyServerFromConfig)
}
