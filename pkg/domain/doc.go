/*
Package domain contains the wire and result types shared by every part of the bridge.

It is kept free of I/O: the channel, the host and the agent-facing adapters all
speak in these types, so they can be tested in isolation.

# Key Entities

  - Request / Response: the correlated message pair carried by the command channel.
  - OperationSpec: one item of a batch, dispatched by Kind to an operation handler.
  - Outcome: the tagged per-item result (success with a value, or failure with a message).
  - BatchResult / BatchReply: the host-side and wire-side views of a committed batch.
  - ChannelError: a fault of the transport or correlation layer, as opposed to an item fault.
*/
package domain
