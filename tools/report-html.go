package tools

import (
	"fmt"
	"io"

	"github.com/feedline/feedline/driver"

	md "github.com/russross/blackfriday/v2"
)

// RenderReportHTML writes a driver report as a standalone HTML page.
func RenderReportHTML(r *driver.Report, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<!DOCTYPE html>`)
	f(`<html><head><meta charset="utf-8"><title>input report</title>`)
	f(`<style>`)
	f(`body { font-family: sans-serif; margin: 2em; }`)
	f(`table { border-collapse: collapse; }`)
	f(`td, th { border: 1px solid #ccc; padding: 0.3em 0.8em; }`)
	f(`</style>`)
	f(`</head><body>`)
	f(`<div class="report doc">%s</div>`, md.Run([]byte(r.Markdown())))
	f(`</body></html>`)

	return nil
}
