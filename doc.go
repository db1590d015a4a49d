/*
Package cadbridge lets an external agent drive a CAD authoring host through a
fixed set of high-level operations: parameter edits, element transforms,
tagging, dimensioning and queries.

# Architecture

The bridge has three layers:

  - The Command Channel (pkg/channel) keeps one persistent connection to the
    host, tags every request with an id and correlates the asynchronous
    replies. Requests fail with a TimedOut, Disconnected or HostRejected
    channel fault; they are never retried.
  - The Batch Transaction Executor (pkg/batch) runs on the host side. A batch
    of items runs inside one transaction; every item is isolated in its own
    savepoint, so one failing item is rolled back and reported while the
    others are kept and the transaction still commits.
  - The Unit/Value Codec (pkg/units) converts caller units (millimeters,
    degrees) into host units (feet, radians).

# Usage

	b := cadbridge.New(channel.TCPDialer{Address: "127.0.0.1:8765"})
	defer b.Close()

	reply, err := b.Batch(ctx, "set_parameters", []map[string]any{
		{"element_id": 1001, "name": "Comments", "value": "Fire rated"},
		{"element_id": 1002, "name": "Comments", "value": "Fire rated"},
	})
	if err != nil {
		// channel fault: the whole call failed
	}
	for _, outcome := range reply.Results {
		// per-item success or error
	}

The reference host in pkg/host, serving an in-memory document
(pkg/adapters/memory), stands in for the CAD add-in during development and
tests. Agents reach the bridge through the MCP server (pkg/adapters/mcp) or
the HTTP relay (pkg/adapters/http).
*/
package cadbridge
