package dictionary

// Identifier names a dictionary in the registry (an OID such as
// "1.2.643.5.1.13.13.11.1040").
type Identifier = string

// Cell is one column/value pair of a registry row.
type Cell struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Row is the registry's wire representation of a single entry.
type Row []Cell

// Record is a flattened dictionary entry: column name to value.
// Values are strings or nil in practice; other JSON scalars pass through.
type Record map[string]any

// Page holds the records returned by one registry call.
type Page struct {
	Index   int
	Records []Record
}

// DatasetResult is the complete, ordered record set of one dictionary.
type DatasetResult struct {
	Identifier Identifier
	Records    []Record
}

// Len returns the number of records in the result.
func (d DatasetResult) Len() int {
	return len(d.Records)
}

// Normalize converts a row into a record.
// When a row repeats a column, the later value wins.
func Normalize(row Row) Record {
	rec := make(Record, len(row))
	for _, cell := range row {
		rec[cell.Column] = cell.Value
	}
	return rec
}

// NormalizePage converts rows into records, preserving order.
func NormalizePage(index int, rows []Row) Page {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Normalize(row))
	}
	return Page{Index: index, Records: records}
}
