// Package operation defines the request/response contract shared by every
// posgraph backend.
//
// A Descriptor names a query or mutation and carries its variables. Both the
// in-process mock engine and the live GraphQL transport accept a Descriptor
// and produce a Result with the same data/errors shape, so the router and
// the query watcher never branch on backend identity.
//
// The Catalog lists every canonical operation name together with its GraphQL
// document. The name is the only routing key; documents are validated once,
// against the POS schema, when the catalog is built.
package operation
