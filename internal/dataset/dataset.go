// Package dataset loads fingerprint datasets and exposes the views the
// measure kernels operate on: the full collected table, and the
// one-fingerprint-per-browser deduplicated views used by the sensitivity
// measures.
package dataset

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/engineerr"
)

const (
	fieldBrowserID     = "browser_id"
	fieldTimeOfCollect = "time_of_collect"
)

// timeLayouts lists the date/time formats accepted in the time_of_collect
// column, tried in order, mirroring the permissive datetime parsing a CSV
// reader expects from a fingerprint collection export.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// View is a materialized fingerprint table: one row per collected
// fingerprint, indexed in parallel by BrowserID and TimeOfCollect, with one
// column slice per candidate attribute.
type View struct {
	BrowserID     []int64
	TimeOfCollect []time.Time
	Columns       map[string][]string // attribute name -> values, aligned by row index
}

// Len returns the number of rows in the view.
func (v *View) Len() int {
	return len(v.BrowserID)
}

// Column returns the values of the named column, or nil when the view has
// no column of that name; the measure kernels report that nil as
// KeyNotFound.
func (v *View) Column(name string) []string {
	return v.Columns[name]
}

// Dataset is a fingerprint dataset: the full collected view plus the set of
// candidate attributes found among its columns. The one-fingerprint-per-
// browser views are computed lazily and cached, since FPSelect-style
// explorations evaluate many attribute sets against the same deduplicated
// view.
type Dataset struct {
	view       *View
	candidates attribute.AttributeSet

	dedupOnce  [2]sync.Once // index 0: first, index 1: last
	dedupCache [2]*View
	dedupErr   [2]error
}

// NewDatasetFromCSV parses a CSV fingerprint export. The header row must
// contain browser_id and time_of_collect columns; every other column
// becomes a candidate attribute, numbered left to right starting at 1.
func NewDatasetFromCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, engineerr.Wrap(engineerr.MissingMetadata, err, "reading csv header")
	}

	browserIdx, timeIdx := -1, -1
	attrCols := make([]int, 0, len(header))
	for i, name := range header {
		switch name {
		case fieldBrowserID:
			browserIdx = i
		case fieldTimeOfCollect:
			timeIdx = i
		default:
			attrCols = append(attrCols, i)
		}
	}
	if browserIdx == -1 || timeIdx == -1 {
		return nil, engineerr.New(engineerr.MissingMetadata,
			"csv header is missing required fields %q and/or %q", fieldBrowserID, fieldTimeOfCollect)
	}

	candidates := attribute.AttributeSet{}
	attrNames := make([]string, len(attrCols))
	for pos, col := range attrCols {
		a := attribute.Attribute{ID: uint32(pos + 1), Name: header[col]}
		if err := candidates.Add(a); err != nil {
			return nil, err
		}
		attrNames[pos] = header[col]
	}

	view := &View{Columns: make(map[string][]string, len(attrNames))}
	for _, name := range attrNames {
		view.Columns[name] = nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, engineerr.Wrap(engineerr.MissingMetadata, err, "reading csv row")
		}

		browserID, err := strconv.ParseInt(record[browserIdx], 10, 64)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.MissingMetadata, err, "parsing browser_id %q", record[browserIdx])
		}
		collectedAt, err := parseTime(record[timeIdx])
		if err != nil {
			return nil, engineerr.Wrap(engineerr.MissingMetadata, err, "parsing time_of_collect %q", record[timeIdx])
		}

		view.BrowserID = append(view.BrowserID, browserID)
		view.TimeOfCollect = append(view.TimeOfCollect, collectedAt)
		for _, col := range attrCols {
			name := header[col]
			value := "missing"
			if col < len(record) && record[col] != "" {
				value = record[col]
			}
			view.Columns[name] = append(view.Columns[name], value)
		}
	}

	return &Dataset{view: view, candidates: candidates}, nil
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// CandidateAttributes returns the set of attributes the dataset carries.
func (d *Dataset) CandidateAttributes() attribute.AttributeSet {
	return d.candidates
}

// Dataframe returns the full collected view, one row per collected
// fingerprint.
func (d *Dataset) Dataframe() *View {
	return d.view
}

// DedupOneFpPerBrowser returns the view keeping, for every browser_id, only
// its first (last=false) or last (last=true) collected fingerprint ordered
// by time_of_collect. The result is cached: concurrent callers asking for
// the same variant share one computation via sync.Once.
func (d *Dataset) DedupOneFpPerBrowser(last bool) (*View, error) {
	slot := 0
	if last {
		slot = 1
	}
	d.dedupOnce[slot].Do(func() {
		d.dedupCache[slot], d.dedupErr[slot] = d.computeDedup(last)
	})
	return d.dedupCache[slot], d.dedupErr[slot]
}

func (d *Dataset) computeDedup(last bool) (*View, error) {
	n := d.view.Len()
	if n == 0 {
		return d.view, nil
	}

	byBrowser := make(map[int64][]int, n)
	for i := 0; i < n; i++ {
		b := d.view.BrowserID[i]
		byBrowser[b] = append(byBrowser[b], i)
	}

	browsers := make([]int64, 0, len(byBrowser))
	for b := range byBrowser {
		browsers = append(browsers, b)
	}
	sort.Slice(browsers, func(i, j int) bool { return browsers[i] < browsers[j] })

	kept := make([]int, 0, len(browsers))
	for _, b := range browsers {
		rows := byBrowser[b]
		sort.Slice(rows, func(i, j int) bool {
			return d.view.TimeOfCollect[rows[i]].Before(d.view.TimeOfCollect[rows[j]])
		})
		if last {
			kept = append(kept, rows[len(rows)-1])
		} else {
			kept = append(kept, rows[0])
		}
	}

	// If every row survived, the input is already one-fingerprint-per-browser:
	// alias it instead of copying.
	if len(kept) == n {
		return d.view, nil
	}

	out := &View{
		BrowserID:     make([]int64, len(kept)),
		TimeOfCollect: make([]time.Time, len(kept)),
		Columns:       make(map[string][]string, len(d.view.Columns)),
	}
	for name := range d.view.Columns {
		out.Columns[name] = make([]string, len(kept))
	}
	for outIdx, rowIdx := range kept {
		out.BrowserID[outIdx] = d.view.BrowserID[rowIdx]
		out.TimeOfCollect[outIdx] = d.view.TimeOfCollect[rowIdx]
		for name, col := range d.view.Columns {
			out.Columns[name][outIdx] = col[rowIdx]
		}
	}
	return out, nil
}
