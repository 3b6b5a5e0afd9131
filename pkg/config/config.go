// Package config supplies the robot's calibration parameters. On the
// firmware these live in a protected flash sector; here they are a TOML file
// next to the daemon, with the same fields and the same defaults applied when
// no stored configuration exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Factory calibration for the stock chassis.
const (
	DefaultStraightSteps = 1729 // steps per 100 length units, each wheel
	DefaultTurnSteps     = 2052 // steps per 90 degree turn, each wheel
	DefaultMovePauseMs   = 200
)

// Steppers holds the wheel calibration. Straight values are the steps each
// motor needs to move the robot 100 length units; turn values are the steps
// for a 90 degree rotation.
type Steppers struct {
	StraightStepsLeft  int32 `toml:"straight_steps_left"`
	StraightStepsRight int32 `toml:"straight_steps_right"`
	TurnStepsLeft      int32 `toml:"turn_steps_left"`
	TurnStepsRight     int32 `toml:"turn_steps_right"`
	TickIntervalMs     int32 `toml:"tick_interval_ms"`
	AccelerationTicks  int32 `toml:"acceleration_ticks"`
}

// Servo holds the pen servo calibration.
type Servo struct {
	UpAngle        int32 `toml:"up_angle"`
	DownAngle      int32 `toml:"down_angle"`
	MoveSteps      int32 `toml:"move_steps"`
	TickIntervalMs int32 `toml:"tick_interval_ms"`
}

// Motion holds execution pacing.
type Motion struct {
	MovePauseMs int32 `toml:"move_pause_ms"`
}

// Config is the full calibration set.
type Config struct {
	Steppers Steppers `toml:"steppers"`
	Servo    Servo    `toml:"servo"`
	Motion   Motion   `toml:"motion"`
}

// Default returns the factory calibration.
func Default() *Config {
	return &Config{
		Steppers: Steppers{
			StraightStepsLeft:  DefaultStraightSteps,
			StraightStepsRight: DefaultStraightSteps,
			TurnStepsLeft:      DefaultTurnSteps,
			TurnStepsRight:     DefaultTurnSteps,
			TickIntervalMs:     3,
			AccelerationTicks:  200,
		},
		Servo: Servo{
			UpAngle:        20,
			DownAngle:      -20,
			MoveSteps:      10,
			TickIntervalMs: 30,
		},
		Motion: Motion{MovePauseMs: DefaultMovePauseMs},
	}
}

// Load reads calibration from a TOML file. A missing file yields the factory
// defaults, matching the firmware's behavior for an uninitialised flash
// sector. Any other failure is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("no stored configuration, using defaults", "path", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("cannot read configuration %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warn("configuration has unknown keys", "path", path, "keys", undecoded)
	}
	return cfg, nil
}

// Store writes the calibration back out.
func (c *Config) Store(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot write configuration %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("cannot encode configuration: %w", err)
	}
	return nil
}

// StraightSteps returns the per-wheel scale for FD/BK.
func (c *Config) StraightSteps() (left, right int32) {
	return c.Steppers.StraightStepsLeft, c.Steppers.StraightStepsRight
}

// TurnSteps returns the per-wheel scale for LT/RT.
func (c *Config) TurnSteps() (left, right int32) {
	return c.Steppers.TurnStepsLeft, c.Steppers.TurnStepsRight
}

// MovePause is the settle delay between a completed motion and the next
// instruction dispatch.
func (c *Config) MovePause() time.Duration {
	return time.Duration(c.Motion.MovePauseMs) * time.Millisecond
}
