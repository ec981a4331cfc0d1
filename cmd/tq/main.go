// tq reads a CSV table, runs a pipeline of transformations over it
// and writes the result back out as CSV. It is a thin command line
// wrapper over the tabular engine, mostly useful for experimenting
// with formulas from a shell.
//
// Examples:
//   tq --where '=[@Size] < 5000' files.csv
//   tq --select Name --select Size --sort '=[@Size]' --desc files.csv
//   tq --distinct --limit 10 < files.csv

package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/tabular"
	"www.velocidex.com/golang/tabular/formula"
	"www.velocidex.com/golang/tabular/types"
	"www.velocidex.com/golang/tabular/utils"
)

var (
	app = kingpin.New("tq", "Transform CSV tables with formulas.")

	selects = app.Flag("select", "Column to keep (repeatable, in order).").
		Strings()
	where = app.Flag("where", "Row filter formula, e.g. '=[@Size] < 100'.").
		String()
	sortKey = app.Flag("sort", "Sort key formula.").String()
	desc    = app.Flag("desc", "Sort descending.").Bool()
	limit   = app.Flag("limit", "Keep at most this many rows.").
		Default("-1").Int()
	offset    = app.Flag("offset", "Skip this many rows.").Default("0").Int()
	distinct  = app.Flag("distinct", "Remove duplicate rows.").Bool()
	transpose = app.Flag("transpose", "Flip rows and columns.").Bool()
	european  = app.Flag("european",
		"Parse formulas with decimal comma and group dot.").Bool()
	explain = app.Flag("explain", "Print the pipeline instead of running it.").
		Bool()
	debug = app.Flag("debug", "Dump parsed formulas to stderr.").Bool()

	input = app.Arg("file", "CSV file to read (default stdin).").String()
)

func fatal(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	locale := formula.DefaultLocale()
	if *european {
		locale = formula.EuropeanLocale()
	}

	source := os.Stdin
	if *input != "" {
		file, err := os.Open(*input)
		if err != nil {
			fatal("tq: %v", err)
		}
		defer file.Close()
		source = file
	}

	cursor, err := newCSVCursor(source)
	if err != nil {
		fatal("tq: %v", err)
	}

	data := buildPipeline(tabular.FromSource(
		tabular.SourceFromCursor(cursor, tabular.DefaultFetchSize)), locale)

	if *explain {
		os.Stdout.WriteString(tabular.Explain(data))
		return
	}

	// Materialization resolves on a background goroutine; hold main
	// open (and the input file with it) until the result lands.
	done := make(chan struct{})
	data.Raster(tabular.NewJob(), func(result *tabular.Raster, err error) {
		defer close(done)
		if err != nil {
			fatal("tq: %v", err)
		}
		if err := writeCSV(os.Stdout, result); err != nil {
			fatal("tq: %v", err)
		}
	})
	<-done
}

func buildPipeline(data *tabular.Data, locale formula.Locale) *tabular.Data {
	if *where != "" {
		data = data.Filter(mustParse(*where, locale))
	}
	if len(*selects) > 0 {
		data = data.SelectColumns(*selects...)
	}
	if *sortKey != "" {
		data = data.Sort(mustParse(*sortKey, locale), *desc)
	}
	if *distinct {
		data = data.Distinct()
	}
	if *offset > 0 {
		data = data.Offset(*offset)
	}
	if *limit >= 0 {
		data = data.Limit(*limit)
	}
	if *transpose {
		data = data.Transpose()
	}
	return data
}

func mustParse(text string, locale formula.Locale) *formula.Expression {
	expr, err := formula.ParseWithError(text, locale)
	if err != nil {
		fatal("tq: bad formula %q: %v", text, err)
	}
	if *debug {
		utils.Debug(expr.String())
	}
	return expr
}

// csvCursor streams records from a CSV reader as row batches. The
// first record names the columns; cell types are guessed from their
// spelling.
type csvCursor struct {
	reader *csv.Reader
	names  []string
	done   bool
}

func newCSVCursor(r io.Reader) (*csvCursor, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	return &csvCursor{reader: reader, names: header}, nil
}

func (self *csvCursor) Columns() []string {
	return self.names
}

func (self *csvCursor) Next(job *tabular.Job, max int) (
	[]types.Row, bool, error) {
	if self.done {
		return nil, true, nil
	}

	batch := []types.Row{}
	for len(batch) < max {
		record, err := self.reader.Read()
		if err == io.EOF {
			self.done = true
			return batch, true, nil
		}
		if err != nil {
			return nil, true, err
		}

		row := make(types.Row, 0, len(record))
		for _, field := range record {
			row = append(row, guessValue(field))
		}
		batch = append(batch, row)
	}
	return batch, false, nil
}

func guessValue(field string) types.Value {
	if field == "" {
		return types.Empty()
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return types.Int(i)
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return types.Double(f)
	}
	switch strings.ToLower(field) {
	case "true":
		return types.Bool(true)
	case "false":
		return types.Bool(false)
	}
	return types.String(field)
}

func writeCSV(out io.Writer, raster *tabular.Raster) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(raster.ColumnNames()); err != nil {
		return err
	}
	for i := 0; i < raster.RowCount(); i++ {
		row := raster.Row(i)
		record := make([]string, 0, len(row))
		for _, value := range row {
			record = append(record, value.Display())
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
