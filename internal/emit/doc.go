// Package emit renders chunks to files under the output root and records
// what it wrote in a Manifest.
//
// All state lives in an explicit Context; nothing in the package is global.
// Every file is written through a temporary file and a rename so a chunk
// is either fully present or not written at all.
package emit
