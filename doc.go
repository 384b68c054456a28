// Package feedline provides a hierarchical input source for streaming
// data-processing pipelines.
//
// The core code is in package 'core', storage-backed adapters are in
// 'boltsource' and 'jsource', and a reference driver lives in 'driver'.
// Command-line tools are in 'cmd'.
//
// See https://github.com/feedline/feedline/blob/master/README.md for more.
package feedline
