// Package normgate provides an in-process Go client for the Infoleg
// legal-norms registry with the same enrichment and link rewriting the
// normgate HTTP gateway applies.
//
//	client, _ := normgate.New(normgate.WithRateLimit(2, 1))
//	res, _ := client.Search(ctx, "leyes", normgate.F("numero", "27430"))
//	for _, n := range res.Normas {
//	    fmt.Println(n.DisplayName, n.Publication)
//	}
//
// Searches whose numero carries a year ("70/2023", "70/23") are split into
// one registry call per candidate publication year.
package normgate
