// Package mockengine executes canonical POS operations against an
// in-process mockstore.Store.
//
// Every operation name served by the live backend has a handler here with
// the same result shape. Mutation inputs are checked against a JSON Schema
// before the handler runs, and every execution first waits for the delay
// chosen by the engine's LatencyPolicy so loading states are observable.
//
//	eng, err := mockengine.New(mockengine.WithLatency(mockengine.NoLatency))
//	res := eng.Execute(ctx, operation.Query(operation.GetProducts, map[string]any{"limit": 50}))
package mockengine
