// Package orchestrator runs one comparison between two library versions.
//
// A run walks a fixed sequence of states:
//
//	ResolveV1 → ProvisionV1 → RunNotebooksV1 → LocateV1 →
//	ResolveV2 → ProvisionV2 → RunNotebooksV2 → LocateV2 →
//	PairwiseCompare → Done
//
// Any error moves the run to Aborted; nothing is retried. Both versions share
// one environment, which version 2 upgrades in place. Resources acquired
// during the run (a temporary save directory, the environment lock) are
// released on every exit path, including cancellation.
package orchestrator
