// Package services is the application layer: each service wraps one domain
// aggregate, stamps request time, and orchestrates multi-step operations the
// aggregates deliberately keep apart (e.g. processing then capturing a
// payment). Services never open transactions themselves; every write runs in
// the transaction its aggregate owns.
package services
