// Package report renders queue status and drain runs.
//
// Three formats are provided:
//   - Simple: plain text for terminals
//   - JSON: machine-readable output for tooling
//   - Markdown: documents with tables and a mermaid chart of the queue
//
// Every writer implements Writer, and MultiWriter fans one Report out to
// several of them.
package report
