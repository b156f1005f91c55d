// Package model defines the data structures that flow through spiderq.
//
// This package contains the following main types:
//   - Request: one unit of crawl work, identified by its logical key
//   - QueueStats: a point-in-time summary of a queue partition
//
// Requests are persisted through a versioned, self-checking binary
// envelope (see EncodeRequest) so that stored payloads stay decodable
// independently of the process that produced them.
package model
