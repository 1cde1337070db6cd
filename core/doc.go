// Package core contains the order feed domain contracts, entities, config and
// error taxonomy. Adapters (stores, transport, HTTP) depend on this package;
// core must not depend on them.
package core
