// Package projector embeds the projector pipeline in a Go program: resolve
// missing values, one-hot encode, and project a mixed-type dataset to a
// low-dimensional embedding with PCA, MDS, t-SNE or UMAP.
//
// Results may be memoized in Redis or Valkey; stochastic algorithms are
// seeded, so a repeated request returns the same embedding.
//
//	client, _ := projector.New(ctx, projector.WithRedis("localhost:6379", ""))
//	defer client.Close()
//
//	res, err := client.Project(ctx, projector.Request{
//	    Dataset: projector.Dataset{Fields: []projector.Field{
//	        projector.Numeric("height", []float64{1.2, math.NaN(), 3.1}),
//	        projector.Categorical("shape", []string{"circle", "square", ""}, []bool{false, false, true}),
//	    }},
//	    Scale:     true,
//	    Algorithm: projector.UMAP,
//	})
package projector
