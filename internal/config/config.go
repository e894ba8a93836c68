// Package config loads the kernel's tuning parameters: process table size,
// number of scheduling queues, notification buffer pool size, and the
// quantum budget per priority level. None of this changes the IPC/scheduler
// semantics; it only sizes the arenas those algorithms run over.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	yaml "go.yaml.in/yaml/v2"
)

// Config mirrors the handful of compile-time constants the original kernel
// hard-codes (NR_PROCS, NR_SCHED_QUEUES, NR_NOTIFY_BUFS, QUANTUMS(q), ...)
// as runtime-tunable fields, decoded from YAML via go.yaml.in/yaml and from
// loose CLI overrides via mitchellh/mapstructure — both teacher dependencies.
type Config struct {
	// NrTasks is the number of reserved low slots for pseudo-processes
	// (IDLE, HARDWARE, SYSTEM, ...) that exist before any user process does.
	NrTasks int `yaml:"nr_tasks" mapstructure:"nr_tasks"`
	// NrProcs is the number of ordinary user/server process slots.
	NrProcs int `yaml:"nr_procs" mapstructure:"nr_procs"`
	// NrSysProcs bounds the priv-id space: the width of every
	// notify_pending / send_mask bitmap.
	NrSysProcs int `yaml:"nr_sys_procs" mapstructure:"nr_sys_procs"`
	// NrSchedQueues is the number of multilevel ready queues.
	NrSchedQueues int `yaml:"nr_sched_queues" mapstructure:"nr_sched_queues"`
	// IdleQ is the lowest-priority queue index; demotion never moves a
	// process into it.
	IdleQ int `yaml:"idle_q" mapstructure:"idle_q"`
	// NrNotifyBufs sizes the shared notification record pool.
	NrNotifyBufs int `yaml:"nr_notify_bufs" mapstructure:"nr_notify_bufs"`
	// QuantumsPerQueue[q] is the full_quantums budget a process at
	// priority q is given before sched() demotes it one level.
	QuantumsPerQueue []int `yaml:"quantums_per_queue" mapstructure:"quantums_per_queue"`
	// DefaultQuantumSize is used for any queue not covered by
	// QuantumsPerQueue.
	DefaultQuantumSize int `yaml:"default_quantum_size" mapstructure:"default_quantum_size"`
}

// Default returns the out-of-the-box tuning, chosen to match the original
// kernel's constants closely enough that no config file is required.
func Default() Config {
	return Config{
		NrTasks:            3, // IDLE, HARDWARE, SYSTEM
		NrProcs:            32,
		NrSysProcs:         16,
		NrSchedQueues:      16,
		IdleQ:              15,
		NrNotifyBufs:       32,
		QuantumsPerQueue:   nil,
		DefaultQuantumSize: 8,
	}
}

// QuantumFor returns the full_quantums budget for a priority level,
// falling back to DefaultQuantumSize when QuantumsPerQueue doesn't cover it.
func (c Config) QuantumFor(priority int) int {
	if priority >= 0 && priority < len(c.QuantumsPerQueue) {
		return c.QuantumsPerQueue[priority]
	}
	return c.DefaultQuantumSize
}

// Validate reports a descriptive error for any configuration that would
// make the kernel's invariants impossible to maintain.
func (c Config) Validate() error {
	if c.NrSchedQueues <= 0 {
		return fmt.Errorf("nr_sched_queues must be positive, got %d", c.NrSchedQueues)
	}

	if c.IdleQ < 0 || c.IdleQ >= c.NrSchedQueues {
		return fmt.Errorf("idle_q %d out of range [0,%d)", c.IdleQ, c.NrSchedQueues)
	}

	if c.NrNotifyBufs <= 0 {
		return fmt.Errorf("nr_notify_bufs must be positive, got %d", c.NrNotifyBufs)
	}

	if c.NrSysProcs <= 0 {
		return fmt.Errorf("nr_sys_procs must be positive, got %d", c.NrSysProcs)
	}

	if c.NrTasks < 0 || c.NrProcs < 0 {
		return fmt.Errorf("nr_tasks and nr_procs must be non-negative")
	}

	return nil
}

// Load reads a YAML tuning file, overlaying it on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("Failed to read kernel config %q: %w", path, err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("Failed to parse kernel config %q: %w", path, err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("Invalid kernel config %q: %w", path, err)
	}

	return cfg, nil
}

// WithOverrides decodes a loose map (as produced by repeated --set
// key=value CLI flags) onto a copy of c.
func (c Config) WithOverrides(overrides map[string]any) (Config, error) {
	out := c

	if len(overrides) == 0 {
		return out, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return c, fmt.Errorf("Failed to build config decoder: %w", err)
	}

	err = decoder.Decode(overrides)
	if err != nil {
		return c, fmt.Errorf("Failed to apply config overrides: %w", err)
	}

	err = out.Validate()
	if err != nil {
		return c, err
	}

	return out, nil
}
