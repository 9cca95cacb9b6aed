package propagation

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// State is a spacecraft state vector in the TEME frame.
type State struct {
	Position r3.Vec // km
	Velocity r3.Vec // km/s
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers   int // Worker pool size (default: runtime.NumCPU())
	ChunkSize int // Grid instants per job (default: 512)
}
