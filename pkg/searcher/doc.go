// Package searcher maps a query to source fragments of a built corpus.
//
// A corpus is the artifact pair written by `codecorpus index`: a vector
// index and a metadata collection whose record i describes vector i.
// Two searchers are provided:
//
//   - [VectorSearcher]: nearest-neighbor search through the index
//   - [ScanSearcher]: exhaustive cosine scoring over the embeddings stored
//     in the metadata, for corpora written with include_embeddings
//
// [Open] loads both artifacts, checks that they line up and builds the
// query embedder named in the index manifest:
//
//	c, err := searcher.Open(ctx, searcher.OpenOptions{
//	    IndexPath:    "corpus.index",
//	    MetadataPath: "corpus_docs.json",
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	results, err := c.Search(ctx, "how is the king safety evaluated", 3)
//
// All searchers are safe for concurrent use.
package searcher
