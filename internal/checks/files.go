package checks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"Probekit/internal/domain"

	"github.com/spf13/pflag"
)

type MtimeConfig struct {
	File       string
	Warning    int64
	Critical   int64
	OKNoExist  bool
	OKZeroSize bool
}

func (c *MtimeConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.File, "file", "f", "", "File to check last modified time")
	fs.Int64VarP(&c.Warning, "warning", "w", 0, "Warn if mtime greater than provided age in seconds")
	fs.Int64VarP(&c.Critical, "critical", "c", 0, "Critical if mtime greater than provided age in seconds")
	fs.BoolVarP(&c.OKNoExist, "ok-no-exist", "o", false, "OK if file does not exist")
	fs.BoolVarP(&c.OKZeroSize, "ok-zero-size", "z", false, "OK if file has zero size")
}

// MtimeCheck alerts when a file (or the first match of a glob) gets too old.
type MtimeCheck struct {
	cfg MtimeConfig
	now func() time.Time
}

func NewMtimeCheck(cfg MtimeConfig) (*MtimeCheck, error) {
	if cfg.File == "" {
		return nil, domain.InvalidConfig("No file specified")
	}
	if cfg.Warning <= 0 && cfg.Critical <= 0 {
		return nil, domain.InvalidConfig("No warn or critical age specified")
	}
	return &MtimeCheck{cfg: cfg, now: time.Now}, nil
}

func (c *MtimeCheck) Name() string { return "Mtime" }

func (c *MtimeCheck) Run(ctx context.Context) (domain.Result, error) {
	matches, err := filepath.Glob(c.cfg.File)
	if err != nil {
		return domain.Result{}, domain.InvalidConfig("invalid file pattern %q: %v", c.cfg.File, err)
	}
	if len(matches) == 0 {
		if c.cfg.OKNoExist {
			return domain.OK("file does not exist"), nil
		}
		return domain.Critical("file not found"), nil
	}

	info, err := os.Stat(matches[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && c.cfg.OKNoExist {
			return domain.OK("file does not exist"), nil
		}
		return domain.Critical("file not found"), nil
	}
	if info.Size() == 0 && !c.cfg.OKZeroSize {
		return domain.Critical("file has zero size"), nil
	}

	age := c.now().Unix() - info.ModTime().Unix()
	if c.cfg.Critical > 0 && age >= c.cfg.Critical {
		return domain.Critical("file is %d seconds past critical", age-c.cfg.Critical), nil
	}
	if c.cfg.Warning > 0 && age >= c.cfg.Warning {
		return domain.Warning("file is %d seconds past warning", age-c.cfg.Warning), nil
	}
	return domain.OK("file is %d seconds old", age), nil
}

type DirCountConfig struct {
	Directory string
	Warning   int
	Critical  int
}

func (c *DirCountConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Directory, "dir", "d", "", "Directory to count files in")
	fs.IntVarP(&c.Warning, "warning", "w", 0, "Warn if count of files is greater than provided number")
	fs.IntVarP(&c.Critical, "critical", "c", 0, "Critical if count of files is greater than provided number")
}

type DirCountCheck struct {
	cfg DirCountConfig
}

func NewDirCountCheck(cfg DirCountConfig) (*DirCountCheck, error) {
	if cfg.Directory == "" {
		return nil, domain.InvalidConfig("directory is required")
	}
	if cfg.Warning <= 0 || cfg.Critical <= 0 {
		return nil, domain.InvalidConfig("warning and critical counts are required")
	}
	return &DirCountCheck{cfg: cfg}, nil
}

func (c *DirCountCheck) Name() string { return "DirCount" }

func (c *DirCountCheck) Run(ctx context.Context) (domain.Result, error) {
	entries, err := os.ReadDir(c.cfg.Directory)
	if err != nil {
		return domain.Unknown("Error listing files in %s", c.cfg.Directory), nil
	}

	n := len(entries)
	switch {
	case n >= c.cfg.Critical:
		return domain.Critical("%s has %d files (threshold: %d)", c.cfg.Directory, n, c.cfg.Critical), nil
	case n >= c.cfg.Warning:
		return domain.Warning("%s has %d files (threshold: %d)", c.cfg.Directory, n, c.cfg.Warning), nil
	default:
		return domain.OK("%s has %d files", c.cfg.Directory, n), nil
	}
}
