// Package config holds tuning knobs of the op allocator and optimizer.
// None of them is load-bearing for correctness.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"tlog.app/go/errors"
)

type (
	File struct {
		Tuning Tuning `toml:"tuning"`
	}

	Tuning struct {
		SlabUnits    int `toml:"slab_units"`     // first slab size
		SlabMaxUnits int `toml:"slab_max_units"` // slab size cap
		SlabGrowth   int `toml:"slab_growth"`    // next slab = cumulative size * growth
		FreeScan     int `toml:"free_scan"`      // first-fit free list scan bound

		DeferQueue  int `toml:"defer_queue"`  // optimizer deferred queue capacity
		PadrangeMax int `toml:"padrange_max"` // max slots fused into one padrange

		Fold     bool `toml:"fold"`
		Mderef   bool `toml:"mderef"`
		Warnings bool `toml:"warnings"`
	}
)

func Default() Tuning {
	return Tuning{
		SlabUnits:    64,
		SlabMaxUnits: 2048,
		SlabGrowth:   2,
		FreeScan:     8,
		DeferQueue:   4,
		PadrangeMax:  127,

		Fold:     true,
		Mderef:   true,
		Warnings: true,
	}
}

// Load reads a toml file. Missing keys keep their defaults.
func Load(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, errors.Wrap(err, "read %v", path)
	}

	return Parse(data)
}

func Parse(data []byte) (Tuning, error) {
	f := File{Tuning: Default()}

	if err := toml.Unmarshal(data, &f); err != nil {
		return Tuning{}, errors.Wrap(err, "parse toml")
	}

	t := f.Tuning.WithDefaults()

	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}

	return t, nil
}

func (t Tuning) WithDefaults() Tuning {
	d := Default()

	if t.SlabUnits == 0 {
		t.SlabUnits = d.SlabUnits
	}
	if t.SlabMaxUnits == 0 {
		t.SlabMaxUnits = d.SlabMaxUnits
	}
	if t.SlabGrowth == 0 {
		t.SlabGrowth = d.SlabGrowth
	}
	if t.FreeScan == 0 {
		t.FreeScan = d.FreeScan
	}
	if t.DeferQueue == 0 {
		t.DeferQueue = d.DeferQueue
	}
	if t.PadrangeMax == 0 {
		t.PadrangeMax = d.PadrangeMax
	}

	return t
}

func (t Tuning) Validate() error {
	switch {
	case t.SlabUnits < 8:
		return errors.New("slab_units too small: %d", t.SlabUnits)
	case t.SlabMaxUnits < t.SlabUnits:
		return errors.New("slab_max_units (%d) < slab_units (%d)", t.SlabMaxUnits, t.SlabUnits)
	case t.SlabGrowth < 1:
		return errors.New("bad slab_growth: %d", t.SlabGrowth)
	case t.FreeScan < 1:
		return errors.New("bad free_scan: %d", t.FreeScan)
	case t.DeferQueue < 1:
		return errors.New("bad defer_queue: %d", t.DeferQueue)
	case t.PadrangeMax < 2:
		return errors.New("bad padrange_max: %d", t.PadrangeMax)
	}

	return nil
}
