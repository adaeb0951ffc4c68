// Package logquery describes filters over stored sync log entries and
// compiles them to parameterized SQLite.
//
// A Query selects entries across every stored log, or within one base
// address, narrowed by a Filter:
//
//	logquery.Query{
//		Base: ir.CollectionAddress("acme", "people"),
//		Filter: logquery.And{Filters: []logquery.Filter{
//			logquery.KindIs{Kind: ir.KindChange},
//			logquery.Under{Address: ir.MustParseAddress("acme/people/alice")},
//			logquery.Origin{Local: true},
//		}},
//	}
//
// Compiled statements always order by base address then revision, so a
// query returns entries in log order. Values are always bound as
// parameters, never interpolated into the statement.
package logquery
