//go:build v8

package mapper

import "github.com/cryguy/mapengine/internal/v8engine"

func init() {
	RegisterBackend("v8", v8engine.New)
}
