package stage

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Builder can be used to build a stage.
type Builder struct {
	freq         Freq
	acceleration float64
	logger       *zap.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		freq:         DefaultFreq,
		acceleration: 1,
		logger:       zap.NewNop(),
	}
}

// WithFreq sets the nominal step rate.
func (b Builder) WithFreq(freq Freq) Builder {
	b.freq = freq
	return b
}

// WithTimeAcceleration sets the initial time acceleration.
func (b Builder) WithTimeAcceleration(factor float64) Builder {
	b.acceleration = factor
	return b
}

// WithLogger sets the logger that reports script errors.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.freq <= 0 {
		panic("step frequency must be positive")
	}

	if b.acceleration <= 0 {
		panic("time acceleration must be positive")
	}
}

// Build loads a project from Lua source.
func (b Builder) Build(source string) (*Stage, error) {
	b.parametersMustBeValid()

	s := newStage(b.freq, b.acceleration, b.logger)
	s.L = lua.NewState()
	s.registerAPI()

	if err := s.L.DoString(prelude); err != nil {
		s.L.Close()
		return nil, fmt.Errorf("load prelude: %w", err)
	}

	if err := s.L.DoString(source); err != nil {
		s.L.Close()
		return nil, fmt.Errorf("load project: %w", err)
	}

	s.log.Debug("loaded project",
		zap.Int("actors", len(s.actors)),
		zap.Int("scripts", len(s.scripts)))

	return s, nil
}

// BuildFile loads a project from a Lua file.
func (b Builder) BuildFile(path string) (*Stage, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return b.Build(string(source))
}
