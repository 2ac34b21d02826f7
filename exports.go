package mapengine

import (
	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/emit"
	"github.com/cryguy/mapengine/internal/mapper"
)

// Type aliases re-exporting internal types so callers can use
// mapengine.Result, mapengine.Metadata, etc. without importing the
// internal packages directly.

type EngineConfig = core.EngineConfig
type Metadata = core.Metadata
type ScriptLoader = core.ScriptLoader
type ScriptLoaderFunc = core.ScriptLoaderFunc
type StaticScripts = core.StaticScripts
type CompileError = core.CompileError
type ScriptError = core.ScriptError
type ScriptNotFoundError = core.ScriptNotFoundError
type LoadReport = mapper.LoadReport
type Result = emit.Result
type TokenKind = emit.TokenKind
type Slot = emit.Slot
type RawJSON = emit.RawJSON
type MapValue = emit.MapValue
type MapEntry = emit.MapEntry

// Token kinds, in boundary order.
const (
	String      = emit.String
	IntNumber   = emit.IntNumber
	FloatNumber = emit.FloatNumber
	BoolTrue    = emit.BoolTrue
	BoolFalse   = emit.BoolFalse
	ArrayStart  = emit.ArrayStart
	ArrayEnd    = emit.ArrayEnd
	MapStart    = emit.MapStart
	MapEnd      = emit.MapEnd
	Undefined   = emit.Undefined
	JSONString  = emit.JSONString
)

// Constants re-exported from core.
const (
	MaxWorkers            = core.MaxWorkers
	DefaultResultCapacity = core.DefaultResultCapacity
)

// Errors re-exported from core.
var (
	ErrEngineInit       = core.ErrEngineInit
	ErrCapacityExceeded = core.ErrCapacityExceeded
	ErrKindMismatch     = core.ErrKindMismatch
	ErrIndexOutOfRange  = core.ErrIndexOutOfRange
	ErrClosed           = core.ErrClosed
)

// Backends lists the script runtimes compiled into this binary.
var Backends = mapper.Backends

// JSONSafe makes a value from Result.Decode safe for encoding/json.
var JSONSafe = emit.JSONSafe
