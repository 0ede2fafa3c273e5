package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
	"github.com/randalmurphal/dataflow/pkg/dataflow/vendor"
)

// VendorConfig selects one instrument's data from a vendor.Reader.
type VendorConfig struct {
	Symbol       string    `mapstructure:"symbol" validate:"required"`
	Exchange     string    `mapstructure:"exchange"`
	Frequency    string    `mapstructure:"frequency" validate:"required"`
	ContractType string    `mapstructure:"contract_type" validate:"required"`
	Start        time.Time `mapstructure:"start_date"`
	End          time.Time `mapstructure:"end_date"`
	RowLimit     int       `mapstructure:"nrows" validate:"gte=0"`
}

func (c VendorConfig) request(w table.Window) vendor.Request {
	return vendor.Request{
		Exchange:     c.Exchange,
		Symbol:       c.Symbol,
		Frequency:    c.Frequency,
		ContractType: c.ContractType,
		Start:        w.Start,
		End:          w.End,
		RowLimit:     c.RowLimit,
	}
}

// NewVendorReader returns a DataSource reading one symbol from r. The
// effective window is pushed down to the reader.
func NewVendorReader(id string, r vendor.Reader, cfg VendorConfig) (*DataSource, error) {
	if r == nil {
		return nil, fmt.Errorf("vendor %s: %w: nil reader", id, config.ErrInvalidConfig)
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("vendor %s: %w", id, err)
	}
	origin := OriginFunc(func(ctx context.Context, w table.Window) (*table.Frame, error) {
		return r.Read(ctx, cfg.request(w))
	})
	return New(id, origin, table.Window{Start: cfg.Start, End: cfg.End}), nil
}

// VendorColumnConfig selects one column for several instruments.
type VendorColumnConfig struct {
	Symbols      []string  `mapstructure:"symbols" validate:"required,min=1,dive,required"`
	Column       string    `mapstructure:"col" validate:"required"`
	Exchange     string    `mapstructure:"exchange"`
	Frequency    string    `mapstructure:"frequency" validate:"required"`
	ContractType string    `mapstructure:"contract_type" validate:"required"`
	Start        time.Time `mapstructure:"start_date"`
	End          time.Time `mapstructure:"end_date"`
	RowLimit     int       `mapstructure:"nrows" validate:"gte=0"`
}

// NewVendorColumnReader returns a DataSource with one column per symbol,
// each holding that symbol's Column values. Timestamps missing for a
// symbol are NaN.
func NewVendorColumnReader(id string, r vendor.Reader, cfg VendorColumnConfig) (*DataSource, error) {
	if r == nil {
		return nil, fmt.Errorf("vendor_multi_col %s: %w: nil reader", id, config.ErrInvalidConfig)
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("vendor_multi_col %s: %w", id, err)
	}
	base := VendorConfig{
		Exchange:     cfg.Exchange,
		Frequency:    cfg.Frequency,
		ContractType: cfg.ContractType,
		RowLimit:     cfg.RowLimit,
	}
	symbols := append([]string(nil), cfg.Symbols...)
	origin := OriginFunc(func(ctx context.Context, w table.Window) (*table.Frame, error) {
		return vendor.ReadColumn(ctx, r, base.request(w), symbols, cfg.Column)
	})
	return New(id, origin, table.Window{Start: cfg.Start, End: cfg.End}), nil
}

// DiskConfig reads a CSV file with a "timestamp" column.
type DiskConfig struct {
	FilePath string    `mapstructure:"file_path" validate:"required"`
	Start    time.Time `mapstructure:"start_date"`
	End      time.Time `mapstructure:"end_date"`
	RowLimit int       `mapstructure:"nrows" validate:"gte=0"`
}

// NewDisk returns a DataSource over a CSV file. The file is read on each
// load, never at construction.
func NewDisk(id string, cfg DiskConfig) (*DataSource, error) {
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("disk %s: %w", id, err)
	}
	origin := OriginFunc(func(ctx context.Context, _ table.Window) (*table.Frame, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		df, err := vendor.ReadCSVFile(cfg.FilePath, cfg.RowLimit)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", vendor.ErrNoData, err)
		}
		return df, err
	})
	return New(id, origin, table.Window{Start: cfg.Start, End: cfg.End}), nil
}
