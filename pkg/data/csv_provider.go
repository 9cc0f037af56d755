package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

const component = "data"

// Provider loads bar history from a source
type Provider interface {
	LoadBars(source string) ([]types.PriceBar, error)
	Name() string
}

// ColumnMapping defines the column positions of a CSV bar file
type ColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	// DateFormat is a time layout; "unix" and "unixms" read epoch seconds or
	// milliseconds
	DateFormat string
}

// DefaultCSVFormat is timestamp,open,high,low,close,volume with a header row
var DefaultCSVFormat = ColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// CSVProvider reads bars from CSV files. Malformed rows are skipped and
// logged; a file without a single valid row is an error.
type CSVProvider struct {
	format ColumnMapping
	log    *logger.Logger
}

// NewCSVProvider creates a CSV provider. A zero format means DefaultCSVFormat.
func NewCSVProvider(format ColumnMapping, log *logger.Logger) *CSVProvider {
	if format.MinColumns == 0 {
		format = DefaultCSVFormat
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CSVProvider{format: format, log: log}
}

// Name returns the name of the data provider
func (p *CSVProvider) Name() string {
	return "csv"
}

// LoadBars reads the file at source
func (p *CSVProvider) LoadBars(source string) ([]types.PriceBar, error) {
	file, err := os.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, coreerrors.NewNotFoundError(component, "LoadBars", source)
		}
		return nil, coreerrors.NewDataError(component, "LoadBars", err)
	}
	defer file.Close()

	bars, err := p.Read(file)
	if err != nil {
		return nil, err
	}
	p.log.Info("bars loaded", "source", source, "bars", len(bars))
	return bars, nil
}

// Read parses bars from r, skipping the header row
func (p *CSVProvider) Read(r io.Reader) ([]types.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, coreerrors.NewDataError(component, "Read", fmt.Errorf("reading header: %w", err))
	}

	var bars []types.PriceBar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, coreerrors.NewDataError(component, "Read", fmt.Errorf("line %d: %w", line, err))
		}

		bar, err := p.parseRecord(record)
		if err != nil {
			p.log.Warning("skipping bar", "line", line, "error", err.Error())
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, coreerrors.NewDataError(component, "Read", errors.New("no valid bars"))
	}
	return bars, nil
}

func (p *CSVProvider) parseRecord(record []string) (types.PriceBar, error) {
	f := p.format
	if len(record) < f.MinColumns {
		return types.PriceBar{}, fmt.Errorf("expected %d columns, got %d", f.MinColumns, len(record))
	}

	ts, err := parseTimestamp(record[f.TimestampCol], f.DateFormat)
	if err != nil {
		return types.PriceBar{}, err
	}

	values := make([]float64, 5)
	for i, col := range []int{f.OpenCol, f.HighCol, f.LowCol, f.CloseCol, f.VolumeCol} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.PriceBar{}, fmt.Errorf("column %d: %w", col, err)
		}
		values[i] = v
	}

	bar := types.PriceBar{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}
	if err := validateBar(bar); err != nil {
		return types.PriceBar{}, err
	}
	return bar, nil
}

func parseTimestamp(raw, layout string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	switch layout {
	case "unix", "unixms":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
		}
		if layout == "unixms" {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	default:
		ts, err := time.Parse(layout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
		}
		return ts, nil
	}
}

func validateBar(b types.PriceBar) error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.New("prices must be positive")
	}
	if b.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if b.High < b.Low || b.High < b.Open || b.High < b.Close {
		return errors.New("high is below another price")
	}
	if b.Low > b.Open || b.Low > b.Close {
		return errors.New("low is above another price")
	}
	return nil
}

// ValidateBars checks price sanity and chronological order of a series
func ValidateBars(bars []types.PriceBar) error {
	if len(bars) == 0 {
		return coreerrors.NewValidationError(component, "ValidateBars", "no bars provided")
	}
	for i, b := range bars {
		if err := validateBar(b); err != nil {
			return coreerrors.NewValidationError(component, "ValidateBars", fmt.Sprintf("bar %d: %v", i, err))
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return coreerrors.NewValidationError(component, "ValidateBars",
				fmt.Sprintf("bar %d: timestamps must be strictly increasing", i))
		}
	}
	return nil
}
