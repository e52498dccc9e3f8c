// Package resolve maps module specifiers to absolute file paths.
//
// Explicitly relative ("./x", "../x") and absolute ("/x") specifiers are
// resolved against the importing directory. Bare specifiers are probed in
// every search root, in the configured order, and within a root with each
// configured extension in order. Directories are probed for a package.json
// "main" field and then for an index file. The first regular file wins.
package resolve
