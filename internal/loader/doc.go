// Package loader executes per-file transform chains.
//
// A Loader turns the content of one file into new content and reports the
// specifiers the content references. Loaders are a closed set of kinds
// (identity, script, sass, css, style, template, exec) built from validated
// config.LoaderSpec values. Chains run in declared order: chain[0] receives
// the raw file content, chain[1] receives chain[0]'s output, and so on.
package loader
