// ABOUTME: TOML configuration for the collector and its tools
// ABOUTME: Human-readable sizes resolve to gc.Options

// Package config loads collector settings from TOML. Every field is
// optional; missing ones keep the defaults of gc.DefaultOptions.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/inhies/go-bytesize"

	"github.com/prateek/nurserygc/gc"
)

var (
	// ErrInvalidSize is returned for a size that does not parse or is not
	// a whole number of bytes.
	ErrInvalidSize = errors.New("invalid size")
	// ErrUnknownKey is returned when the file sets a key nothing reads.
	ErrUnknownKey = errors.New("unknown configuration key")
)

// Config mirrors the TOML file.
type Config struct {
	Nursery   Nursery   `toml:"nursery"`
	Adult     Adult     `toml:"adult"`
	Large     Large     `toml:"large"`
	Collector Collector `toml:"collector"`
	Log       Log       `toml:"log"`
}

type Nursery struct {
	Size            string  `toml:"size"`
	FragmentSize    string  `toml:"fragment_size"`
	MinFragmentSize string  `toml:"min_fragment_size"`
	CollectRatio    float64 `toml:"collect_ratio"`
}

type Adult struct {
	Size      string `toml:"size"`
	BlockSize string `toml:"block_size"`
}

type Large struct {
	Size string `toml:"size"`
}

type Collector struct {
	// MajorTrigger is the allocation volume between major collections.
	MajorTrigger string `toml:"major_trigger"`
	// ScanLimit bounds any single conservative scan.
	ScanLimit string `toml:"scan_limit"`
}

type Log struct {
	// Verbosity follows commonlog: 0 logs errors only, 1 adds info, 2 debug.
	Verbosity int `toml:"verbosity"`
	// Path is the log file; empty means stderr.
	Path string `toml:"path"`
}

// Default returns the configuration matching gc.DefaultOptions.
func Default() Config {
	o := gc.DefaultOptions()
	return Config{
		Nursery: Nursery{
			Size:            FormatSize(uint64(o.NurserySize)),
			FragmentSize:    FormatSize(uint64(o.FragmentSize)),
			MinFragmentSize: FormatSize(uint64(o.MinFragmentSize)),
			CollectRatio:    o.CollectRatio,
		},
		Adult: Adult{
			Size:      FormatSize(uint64(o.AdultSize)),
			BlockSize: FormatSize(uint64(o.AdultBlockSize)),
		},
		Large: Large{Size: FormatSize(uint64(o.LargeSize))},
		Collector: Collector{
			MajorTrigger: FormatSize(o.MajorTrigger),
			ScanLimit:    FormatSize(uint64(o.ScanLimit)),
		},
		Log: Log{Verbosity: 1},
	}
}

// Parse overlays the TOML document data on the defaults.
func Parse(data []byte) (Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}
	if _, err := c.Options(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and parses the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Options resolves the sizes and validates the result.
func (c Config) Options() (gc.Options, error) {
	o := gc.DefaultOptions()
	o.CollectRatio = c.Nursery.CollectRatio

	sizes := []struct {
		key string
		val string
		dst *uintptr
	}{
		{"nursery.size", c.Nursery.Size, &o.NurserySize},
		{"nursery.fragment_size", c.Nursery.FragmentSize, &o.FragmentSize},
		{"nursery.min_fragment_size", c.Nursery.MinFragmentSize, &o.MinFragmentSize},
		{"adult.size", c.Adult.Size, &o.AdultSize},
		{"adult.block_size", c.Adult.BlockSize, &o.AdultBlockSize},
		{"large.size", c.Large.Size, &o.LargeSize},
		{"collector.scan_limit", c.Collector.ScanLimit, &o.ScanLimit},
	}
	for _, s := range sizes {
		n, err := ParseSize(s.val)
		if err != nil {
			return gc.Options{}, fmt.Errorf("%s: %w", s.key, err)
		}
		*s.dst = uintptr(n)
	}
	trigger, err := ParseSize(c.Collector.MajorTrigger)
	if err != nil {
		return gc.Options{}, fmt.Errorf("collector.major_trigger: %w", err)
	}
	o.MajorTrigger = trigger

	if err := o.Validate(); err != nil {
		return gc.Options{}, err
	}
	return o, nil
}

// ParseSize accepts a plain byte count or a size such as "32MB" or "1.5GB".
// Units are binary: 1KB is 1024 bytes.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSize)
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	b, err := bytesize.Parse(strings.ToUpper(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidSize, s, err)
	}
	f := float64(b)
	if f < 0 || f != math.Trunc(f) || f > math.MaxUint64 {
		return 0, fmt.Errorf("%w %q: not a whole number of bytes", ErrInvalidSize, s)
	}
	return uint64(f), nil
}

// FormatSize renders n in the largest unit that divides it exactly, so
// that ParseSize(FormatSize(n)) == n.
func FormatSize(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	for i < len(units)-1 && n != 0 && n%1024 == 0 {
		n /= 1024
		i++
	}
	return fmt.Sprintf("%d%s", n, units[i])
}
