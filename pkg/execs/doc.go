// Package execs runs external commands and captures their output.
//
// It is used to drive pre-built cloud command-line tools (such as gsutil)
// rather than reimplementing them.
package execs
