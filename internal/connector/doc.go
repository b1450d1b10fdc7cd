// Package connector defines the core types shared across the status aggregation
// and job routing subsystems.
//
// An analysis engine deployment is modeled as an InstanceClient. The ordered set
// of configured clients forms an InstancePool, fixed for the process lifetime.
// Aggregators poll every instance concurrently and reduce the per-instance
// signals, while the router resolves which instance owns a job or offers an
// analyzer. Failures of individual instances during fan-out are represented as
// data (an ERROR status document or Error health), never as an error of the
// aggregate operation.
package connector
