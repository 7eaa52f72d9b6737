// Package dictionary defines the record model of NSI reference dictionaries.
//
// The registry transfers each dictionary entry as an ordered list of
// column/value cells:
//
//	[{"column": "ID", "value": "1"}, {"column": "NAME", "value": "Аллергия"}]
//
// Normalize flattens such a row into a Record keyed by column name:
//
//	{"ID": "1", "NAME": "Аллергия"}
//
// Records are the unit that gets persisted. A DatasetResult holds every
// record of one dictionary in registry order.
package dictionary
