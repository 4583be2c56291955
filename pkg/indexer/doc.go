// Package indexer builds a codecorpus artifact pair from configuration.
//
// It wires the pieces that a build needs from a loaded config.Config: the
// embedding provider, the vector index and a progress renderer, and runs the
// indexing pipeline once.
//
//	cfg, err := config.Load(root)
//	if err != nil {
//	    return err
//	}
//	result, err := indexer.Build(ctx, cfg, indexer.WithRenderer(r))
//
// A failed build never leaves a partial artifact pair behind: either both
// the index and the metadata of the new run are in place, or the previous
// pair (if any) is untouched.
package indexer
