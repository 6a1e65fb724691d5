// Package rankfuse provides an embedded Go client for the rankfuse
// result-fusion pipeline: retrieve candidates from Elasticsearch, rerank
// them with a relevance scorer, and fuse both signals into one ranking.
//
//	client, _ := rankfuse.New(ctx,
//	    rankfuse.WithElasticsearch([]string{"http://localhost:9200"}, "", ""),
//	    rankfuse.WithZeroEntropy(os.Getenv("ZEROENTROPY_API_KEY")),
//	)
//	defer client.Close()
//
//	resp, _ := client.Search(ctx, rankfuse.SearchRequest{
//	    Query: "how do goroutines work",
//	    Index: "articles",
//	})
//	for _, r := range resp.Results {
//	    fmt.Println(r.Rank, r.Score, r.Title)
//	}
//
// Scores can optionally be cached in Redis (WithScoreCache) and every
// pipeline stage can be tuned per client (WithFetchSizes, WithScoreWeights)
// or per request (SearchRequest overrides).
package rankfuse
