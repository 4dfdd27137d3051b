package protocol

import (
	"errors"
	"fmt"
	"time"
)

// Config provides the protocol parameters shared by the coordinator service
// and its clients. Served by the coordinator's /config endpoint so providers
// and oracles agree on board geometry and encoding.
type Config struct {
	// Width and Height are the fixed board dimensions. Every batch has
	// exactly Width*Height slots.
	Width  int `json:"width"`
	Height int `json:"height"`

	// AliveValue is the plaintext sentinel counted as a live cell when a
	// batch is revealed.
	AliveValue byte `json:"alive_value"`

	// InstanceID scopes batch commitments to this deployment so a commitment
	// from one instance can never validate on another.
	InstanceID string `json:"instance_id"`

	// SubmitCooldown is the initial per-provider cooldown between cell
	// submissions. Owner-adjustable at runtime.
	SubmitCooldown time.Duration `json:"submit_cooldown,string"`

	// DecryptCooldown is the initial per-caller cooldown between decryption
	// requests. Owner-adjustable at runtime.
	DecryptCooldown time.Duration `json:"decrypt_cooldown,string"`
}

// DefaultConfig returns the standard 10x10 board configuration.
func DefaultConfig() *Config {
	return &Config{
		Width:           10,
		Height:          10,
		AliveValue:      1,
		InstanceID:      "gol-fhe-local",
		SubmitCooldown:  10 * time.Second,
		DecryptCooldown: 30 * time.Second,
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid board dimensions %dx%d", c.Width, c.Height)
	}
	if c.InstanceID == "" {
		return errors.New("instance id must not be empty")
	}
	if c.SubmitCooldown < 0 || c.DecryptCooldown < 0 {
		return errors.New("cooldowns must not be negative")
	}
	return nil
}

// NumCells returns the number of board slots per batch.
func (c *Config) NumCells() int {
	return c.Width * c.Height
}

// SlotIndex linearizes board coordinates: x + y*Width. This is the canonical
// ordering for commitment computation and plaintext decoding; both sides of
// the oracle protocol depend on it.
func (c *Config) SlotIndex(x, y int) int {
	return x + y*c.Width
}
