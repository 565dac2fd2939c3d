package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sells-group/cnpj-finder/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// summaryTable renders the totals of one run.
func summaryTable(s *model.RunSummary) string {
	if s == nil {
		return ""
	}
	rows := [][]string{
		{"run", s.RunID},
		{"principal", s.Principal.Subject + " (" + s.Principal.Source + ")"},
		{"records", strconv.Itoa(s.Total)},
		{string(model.StatusFound), strconv.Itoa(s.Found)},
		{string(model.StatusNotFound), strconv.Itoa(s.NotFound)},
		{string(model.StatusMissingInput), strconv.Itoa(s.MissingInput)},
		{"search calls", strconv.Itoa(s.SearchCalls)},
		{"search failures", strconv.Itoa(s.SearchFailures)},
		{"duration", formatDuration(s.Duration)},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
