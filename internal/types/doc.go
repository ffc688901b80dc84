// Package types holds the wire messages shared by the HTTP API, the
// WebSocket feed and the drawwatch client.
//
// Client -> Server (WebSocket, identity from the session cookie)
//
//	Heartbeat:      {}
//	PrepareOptions: {}
//	MakeSelection:  choiceIndex: number
//
// Server -> Client
//
//	StateSnapshot (first message after connecting):
//	  version: number
//	  exists: boolean
//	  state: GameState
//
//	<event type> (one per committed transition, in order):
//	  version: number
//	  exists: true
//	  event: { type, drawerId?, options?, selectedIndex?, drawResult?,
//	           session?, adminId?, adminOverride?, skipped? }
//	  state: GameState after the transition
//
//	Error:
//	  error: string
//	  code: "validation" | "phase" | "authorization" | "concurrency" | "feasibility" | "internal"
package types
